package env

const (
	// Prefix is the prefix of every cardprice ENV variable
	Prefix = "CARDPRICE"

	// DBURLSuffix is the Postgres connection string variable (CARDPRICE_DB_URL)
	DBURLSuffix = "_DB_URL"
)
