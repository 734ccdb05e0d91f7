package query

import (
	"strings"
)

// regionalForms maps the English regional prefix to the Portuguese region
var regionalForms = map[string]string{
	"alolan":   "Alola",
	"galarian": "Galar",
	"hisuian":  "Hisui",
	"paldean":  "Paldea",
}

// setNamesPT maps English set names (folded) to their Brazilian release names
var setNamesPT = map[string]string{
	"team up":          "União de Aliados",
	"unbroken bonds":   "Laços Inquebráveis",
	"unified minds":    "Mentes Unidas",
	"cosmic eclipse":   "Eclipse Cósmico",
	"hidden fates":     "Destinos Ocultos",
	"shining fates":    "Destinos Brilhantes",
	"ancient origins":  "Origens Ancestrais",
	"vivid voltage":    "Voltagem Vívida",
	"battle styles":    "Estilos de Batalha",
	"chilling reign":   "Reinado Arrepiante",
	"evolving skies":   "Céus em Evolução",
	"brilliant stars":  "Estrelas Radiantes",
	"astral radiance":  "Radiação Astral",
	"lost origin":      "Origem Perdida",
	"silver tempest":   "Tempestade Prateada",
	"crown zenith":     "Zênite da Coroa",
	"scarlet & violet": "Escarlate e Violeta",
	"scarlet violet":   "Escarlate e Violeta",
	"obsidian flames":  "Chamas Obsidianas",
	"paradox rift":     "Fenda Paradoxa",
	"paldean fates":    "Destinos de Paldea",
	"destined rivals":  "Rivais Predestinados",
}

// LocalizeName rewrites regional forms for the locale
// ("Alolan Vulpix" -> "Vulpix de Alola"). Unknown names are returned as-is
func LocalizeName(name string, locale Locale) string {
	if locale != LocalePT {
		return name
	}

	fields := strings.Fields(name)
	if len(fields) < 2 {
		return name
	}

	region, ok := regionalForms[Fold(fields[0])]
	if !ok {
		return name
	}

	return strings.Join(fields[1:], " ") + " de " + region
}

// LocalizeSet returns the set name used by marketplaces of the locale,
// falling back to the given name
func LocalizeSet(set string, locale Locale) string {
	if locale != LocalePT {
		return set
	}

	if local, ok := setNamesPT[Fold(strings.TrimSpace(set))]; ok {
		return local
	}

	return set
}
