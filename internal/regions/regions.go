// Package regions canonicalises Russian federal subject names.
//
// It holds the full set of 85 federal subjects, the federal-district
// membership map, and an alias table covering abbreviations, informal
// names and major cities. All lookups are pure and never fail: inputs
// that cannot be mapped return ok=false.
package regions

// Canonical federal subject names, grouped by federal district.
// The district map is the source of truth; the flat list is derived.
var federalDistricts = map[string][]string{
	"Центральный": {
		"Белгородская область", "Брянская область", "Владимирская область",
		"Воронежская область", "Ивановская область", "Калужская область",
		"Костромская область", "Курская область", "Липецкая область",
		"Москва", "Московская область", "Орловская область",
		"Рязанская область", "Смоленская область", "Тамбовская область",
		"Тверская область", "Тульская область", "Ярославская область",
	},
	"Северо-Западный": {
		"Архангельская область", "Вологодская область", "Калининградская область",
		"Республика Карелия", "Республика Коми", "Ленинградская область",
		"Мурманская область", "Ненецкий автономный округ", "Новгородская область",
		"Псковская область", "Санкт-Петербург",
	},
	"Южный": {
		"Республика Адыгея", "Астраханская область", "Волгоградская область",
		"Республика Калмыкия", "Краснодарский край", "Республика Крым",
		"Ростовская область", "Севастополь",
	},
	"Северо-Кавказский": {
		"Республика Дагестан", "Республика Ингушетия",
		"Кабардино-Балкарская Республика", "Карачаево-Черкесская Республика",
		"Республика Северная Осетия — Алания", "Ставропольский край",
		"Чеченская Республика",
	},
	"Приволжский": {
		"Республика Башкортостан", "Кировская область", "Республика Марий Эл",
		"Республика Мордовия", "Нижегородская область", "Оренбургская область",
		"Пензенская область", "Пермский край", "Самарская область",
		"Саратовская область", "Республика Татарстан", "Удмуртская Республика",
		"Ульяновская область", "Чувашская Республика",
	},
	"Уральский": {
		"Курганская область", "Свердловская область", "Тюменская область",
		"Ханты-Мансийский автономный округ — Югра", "Челябинская область",
		"Ямало-Ненецкий автономный округ",
	},
	"Сибирский": {
		"Республика Алтай", "Алтайский край", "Иркутская область",
		"Кемеровская область", "Красноярский край", "Новосибирская область",
		"Омская область", "Томская область", "Республика Тыва",
		"Республика Хакасия",
	},
	"Дальневосточный": {
		"Амурская область", "Республика Бурятия", "Еврейская автономная область",
		"Забайкальский край", "Камчатский край", "Магаданская область",
		"Приморский край", "Республика Саха (Якутия)", "Сахалинская область",
		"Хабаровский край", "Чукотский автономный округ",
	},
}

// innRegionCodes maps the two-digit subject code at the start of an INN
// to the canonical subject name.
var innRegionCodes = map[string]string{
	"01": "Республика Адыгея",
	"02": "Республика Башкортостан",
	"03": "Республика Бурятия",
	"04": "Республика Алтай",
	"05": "Республика Дагестан",
	"06": "Республика Ингушетия",
	"07": "Кабардино-Балкарская Республика",
	"08": "Республика Калмыкия",
	"09": "Карачаево-Черкесская Республика",
	"10": "Республика Карелия",
	"11": "Республика Коми",
	"12": "Республика Марий Эл",
	"13": "Республика Мордовия",
	"14": "Республика Саха (Якутия)",
	"15": "Республика Северная Осетия — Алания",
	"16": "Республика Татарстан",
	"17": "Республика Тыва",
	"18": "Удмуртская Республика",
	"19": "Республика Хакасия",
	"20": "Чеченская Республика",
	"21": "Чувашская Республика",
	"22": "Алтайский край",
	"23": "Краснодарский край",
	"24": "Красноярский край",
	"25": "Приморский край",
	"26": "Ставропольский край",
	"27": "Хабаровский край",
	"28": "Амурская область",
	"29": "Архангельская область",
	"30": "Астраханская область",
	"31": "Белгородская область",
	"32": "Брянская область",
	"33": "Владимирская область",
	"34": "Волгоградская область",
	"35": "Вологодская область",
	"36": "Воронежская область",
	"37": "Ивановская область",
	"38": "Иркутская область",
	"39": "Калининградская область",
	"40": "Калужская область",
	"41": "Камчатский край",
	"42": "Кемеровская область",
	"43": "Кировская область",
	"44": "Костромская область",
	"45": "Курганская область",
	"46": "Курская область",
	"47": "Ленинградская область",
	"48": "Липецкая область",
	"49": "Магаданская область",
	"50": "Московская область",
	"51": "Мурманская область",
	"52": "Нижегородская область",
	"53": "Новгородская область",
	"54": "Новосибирская область",
	"55": "Омская область",
	"56": "Оренбургская область",
	"57": "Орловская область",
	"58": "Пензенская область",
	"59": "Пермский край",
	"60": "Псковская область",
	"61": "Ростовская область",
	"62": "Рязанская область",
	"63": "Самарская область",
	"64": "Саратовская область",
	"65": "Сахалинская область",
	"66": "Свердловская область",
	"67": "Смоленская область",
	"68": "Тамбовская область",
	"69": "Тверская область",
	"70": "Томская область",
	"71": "Тульская область",
	"72": "Тюменская область",
	"73": "Ульяновская область",
	"74": "Челябинская область",
	"75": "Забайкальский край",
	"76": "Ярославская область",
	"77": "Москва",
	"78": "Санкт-Петербург",
	"79": "Еврейская автономная область",
	"82": "Республика Крым",
	"83": "Ненецкий автономный округ",
	"86": "Ханты-Мансийский автономный округ — Югра",
	"87": "Чукотский автономный округ",
	"89": "Ямало-Ненецкий автономный округ",
	"91": "Республика Крым",
	"92": "Севастополь",
}

// explicitAliases covers abbreviations, informal names, common typos
// and major cities that identify their subject.
var explicitAliases = map[string]string{
	"мск":               "Москва",
	"г москва":          "Москва",
	"город москва":      "Москва",
	"спб":               "Санкт-Петербург",
	"питер":             "Санкт-Петербург",
	"г санкт-петербург": "Санкт-Петербург",
	"подмосковье":       "Московская область",
	"хмао":              "Ханты-Мансийский автономный округ — Югра",
	"югра":              "Ханты-Мансийский автономный округ — Югра",
	"янао":              "Ямало-Ненецкий автономный округ",
	"башкирия":          "Республика Башкортостан",
	"татарстан":         "Республика Татарстан",
	"якутия":            "Республика Саха (Якутия)",
	"саха":              "Республика Саха (Якутия)",
	"тува":              "Республика Тыва",
	"чечня":             "Чеченская Республика",
	"чувашия":           "Чувашская Республика",
	"удмуртия":          "Удмуртская Республика",
	"осетия":            "Республика Северная Осетия — Алания",
	"северная осетия":   "Республика Северная Осетия — Алания",
	"кабардино-балкария": "Кабардино-Балкарская Республика",
	"карачаево-черкесия": "Карачаево-Черкесская Республика",
	"крым":              "Республика Крым",
	"еао":               "Еврейская автономная область",
	// Major cities.
	"екатеринбург":     "Свердловская область",
	"казань":           "Республика Татарстан",
	"нижний новгород":  "Нижегородская область",
	"краснодар":        "Краснодарский край",
	"новосибирск":      "Новосибирская область",
	"самара":           "Самарская область",
	"омск":             "Омская область",
	"челябинск":        "Челябинская область",
	"ростов-на-дону":   "Ростовская область",
	"уфа":              "Республика Башкортостан",
	"пермь":            "Пермский край",
	"волгоград":        "Волгоградская область",
	"воронеж":          "Воронежская область",
	"саратов":          "Саратовская область",
	"тюмень":           "Тюменская область",
	"иркутск":          "Иркутская область",
	"владивосток":      "Приморский край",
	"хабаровск":        "Хабаровский край",
	"улан-удэ":         "Республика Бурятия",
	"красноярск":       "Красноярский край",
	"калининград":      "Калининградская область",
	"мурманск":         "Мурманская область",
	"архангельск":      "Архангельская область",
	"томск":            "Томская область",
	"кемерово":         "Кемеровская область",
	"оренбург":         "Оренбургская область",
	"петрозаводск":     "Республика Карелия",
	"сыктывкар":        "Республика Коми",
	"ставрополь":       "Ставропольский край",
	"махачкала":        "Республика Дагестан",
	"грозный":          "Чеченская Республика",
	"симферополь":      "Республика Крым",
	"якутск":           "Республика Саха (Якутия)",
	"чита":             "Забайкальский край",
	"барнаул":          "Алтайский край",
	"ижевск":           "Удмуртская Республика",
	"чебоксары":        "Чувашская Республика",
	"южно-сахалинск":   "Сахалинская область",
	"петропавловск-камчатский": "Камчатский край",
}

var (
	all          []string
	canonicalSet map[string]struct{}
	districtOf   map[string]string
)

func init() {
	canonicalSet = make(map[string]struct{})
	districtOf = make(map[string]string)

	for district, members := range federalDistricts {
		for _, name := range members {
			all = append(all, name)
			canonicalSet[name] = struct{}{}
			districtOf[name] = district
		}
	}

	buildAliasIndex()
}

// All returns the canonical set of federal subjects.
func All() []string {
	out := make([]string, len(all))
	copy(out, all)

	return out
}

// IsCanonical reports whether name is a member of the canonical set.
func IsCanonical(name string) bool {
	_, ok := canonicalSet[name]
	return ok
}

// Districts returns the names of the eight federal districts.
func Districts() []string {
	out := make([]string, 0, len(federalDistricts))
	for name := range federalDistricts {
		out = append(out, name)
	}

	return out
}

// ExpandDistrict returns every member subject of a federal district,
// or nil when the input is not a district name.
func ExpandDistrict(name string) []string {
	members, ok := federalDistricts[districtKey(name)]
	if !ok {
		return nil
	}

	out := make([]string, len(members))
	copy(out, members)

	return out
}

// DistrictOf returns the federal district a canonical subject belongs to.
func DistrictOf(region string) (string, bool) {
	d, ok := districtOf[region]
	return d, ok
}

// FromINN maps the two-digit subject code at the start of a 10- or
// 12-digit INN to its canonical subject.
func FromINN(inn string) (string, bool) {
	if len(inn) != 10 && len(inn) != 12 {
		return "", false
	}

	for _, r := range inn {
		if r < '0' || r > '9' {
			return "", false
		}
	}

	region, ok := innRegionCodes[inn[:2]]

	return region, ok
}
