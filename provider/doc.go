// Package provider defines the marketplace adapter capability and the
// startup-time adapter registry.
//
// # Adapters
//
// ## Mercado Livre
//
// Source: "mercadolivre"
// API: https://api.mercadolibre.com/sites/MLB/search
// Locale: PT, bare number allowed
//
// Queries the public search API of the configured site. Returns up to 50
// listings with the seller nickname and item condition. An access token is
// sent when configured.
//
// ## Liga Pokémon
//
// Source: "ligapokemon"
// URL: https://www.ligapokemon.com.br/?view=cards/search
// Locale: PT, bare number allowed
//
// Scrapes the card search page, then a bounded number of card detail pages
// in parallel. Store prices are read from the sellers section of each page.
//
// ## eBay
//
// Source: "ebay"
// API: https://api.ebay.com/buy/browse/v1/item_summary/search
// Locale: EN, split number ("4 102")
//
// Uses the Browse API with an application token obtained through the
// client credentials grant, cached until shortly before it expires.
// Fixed price and auction items are both returned.
//
// ## Cardmarket
//
// Source: "cardmarket"
// URL: https://www.cardmarket.com/<lang>/Pokemon/Products/Search
// Locale: EN
//
// Scrapes the product search results. Several page layouts are tried in
// order and the trend price of each product row is reported, EUR unless
// the page shows another currency.
//
// ## PriceCharting
//
// Source: "pricecharting"
// URL: https://www.pricecharting.com/search-products
// Locale: EN
//
// Scrapes the ungraded reference price of each product row, in USD.
//
// ## Shopee
//
// Source: "shopee"
// API: https://shopee.com.br/api/v4/search/search_items
// Locale: PT
//
// Queries the storefront search API. Prices come back as scaled integers
// and are brought back to BRL units.
package provider
