package match

// Stop-words: generic procurement nouns that never contribute positive
// score on their own, even when present in a filter's keyword list.
var stopWords = map[string]struct{}{
	"поставка":     {},
	"поставки":     {},
	"услуга":       {},
	"услуги":       {},
	"закупка":      {},
	"закупки":      {},
	"работа":       {},
	"работы":       {},
	"система":      {},
	"выполнение":   {},
	"оказание":     {},
	"приобретение": {},
	"обеспечение":  {},
	"товар":        {},
	"товары":       {},
	"продукция":    {},
	"нужды":        {},
}

// shortKeywordWhitelist lists keywords under three characters that are
// still meaningful. They match in exact word-boundary mode only and
// never as a root of a longer word.
var shortKeywordWhitelist = map[string]struct{}{
	"по":  {},
	"it":  {},
	"ит":  {},
	"ибп": {},
	"ас":  {},
	"бд":  {},
	"ос":  {},
	"пк":  {},
	"схд": {},
	"мфу": {},
	"эвм": {},
	"си":  {},
}

// Built-in synonym groups. A filter's own expanded_keywords extend
// these per filter.
var synonyms = map[string][]string{
	"компьютер":  {"ноутбук", "пк", "моноблок", "рабочая станция", "персональный компьютер"},
	"ноутбук":    {"компьютер", "пк", "портативный компьютер"},
	"сервер":     {"серверное оборудование", "серверная платформа", "схд"},
	"принтер":    {"мфу", "печатающее устройство"},
	"медицина":   {"медицинские", "здравоохранение", "больница", "поликлиника"},
	"канцелярия": {"канцтовары", "письменные принадлежности"},
	"мебель":     {"столы", "стулья", "шкафы", "офисная мебель"},
	"автомобиль": {"автотранспорт", "легковой автомобиль", "грузовой автомобиль"},
	"топливо":    {"гсм", "бензин", "дизельное топливо"},
	"охрана":     {"охранные услуги", "видеонаблюдение", "скуд"},
}

// negativePatterns are niche-domain phrases that almost always indicate
// an irrelevant tender for a generic business filter: military, medical
// and narrow construction procurement. Each hit costs
// negativePatternPenalty, capped at negativePatternCap.
var negativePatterns = []string{
	// Military and state security.
	"военного назначения",
	"воинской части",
	"вооружение",
	"боеприпас",
	"гособоронзаказ",
	"оборонного заказа",
	"мобилизационного резерва",
	"военной техники",
	"росгвардии",
	"фельдъегерской",
	"исправительной колонии",
	"следственного изолятора",
	"уфсин",
	"фсин",
	// Medical niche.
	"лекарственных препаратов",
	"лекарственные препараты",
	"фармацевтической субстанции",
	"изделий медицинского назначения",
	"медицинских изделий",
	"наркотических средств",
	"психотропных веществ",
	"донорской крови",
	"вакцин",
	"иммунобиологических",
	"стоматологических материалов",
	"рентгеновской",
	"эндопротез",
	"кардиостимулятор",
	"слуховых аппаратов",
	"дезинфицирующих средств",
	"реактивов для лаборатории",
	"лабораторной диагностики",
	// Construction niche.
	"капитального ремонта многоквартирных",
	"сноса аварийного",
	"благоустройства дворовых",
	"дорожной разметки",
	"асфальтобетонного покрытия",
	"ямочного ремонта",
	"кадастровых работ",
	"межевания",
	"геодезических изысканий",
	"инженерных изысканий",
	"проектно-сметной документации",
	"авторского надзора",
	"строительного контроля",
	"водоотведения",
	"теплоснабжения котельной",
	"капитального строительства",
	"лифтового оборудования",
	"противопожарной пропитки",
	"огнезащитной обработки",
	// Utilities, housing, misc low-signal niches.
	"твердых коммунальных отходов",
	"обращению с тко",
	"захоронения отходов",
	"ритуальных услуг",
	"похоронного дела",
	"вывоза снега",
	"содержания автомобильных дорог",
	"озеленения территории",
	"валки деревьев",
	"отлова животных",
	"дератизации",
	"дезинсекции",
	"аварийно-спасательных",
	"пожарно-технического",
	"детского питания",
	"школьного питания",
	"молочной кухни",
	"путевок в санатории",
	"санаторно-курортного лечения",
	"страхования ответственности",
	"осаго",
	"банковской гарантии",
	"аренды нежилого",
	"технологического присоединения",
	"электроэнергии по регулируемым",
}

// Client-side type heuristics for entries whose type metadata the feed
// omits. The upstream misclassifies goods, so goods filters get a
// two-step check: a title that opens with a goods indicator is accepted
// outright; otherwise the title is rejected when it mentions a service
// or work marker anywhere. Services and works filters get the inverse
// safety net over the full text on top of the server-side type code.

// goodsStartIndicators whitelist a title as goods by its opening word,
// even when service markers appear later in it.
var goodsStartIndicators = []string{
	"поставка",
	"закупка",
	"приобретение",
	"купля",
	"покупка",
	"снабжение",
}

// serviceWorkIndicators reject a non-whitelisted title as a service or
// work for goods filters. Title only: summaries trip too many false
// positives.
var serviceWorkIndicators = []string{
	"оказание услуг",
	"выполнение работ",
	"проведение работ",
	"оказание услуги",
	"выполнение услуг",
	"услуги по",
	"работы по",
	"медицинские услуги",
	"медицинская помощь",
	"консультирование",
	"проектирование",
	"техническое обслуживание",
	"техобслуживание",
	"сервисное обслуживание",
}

// Explicit goods mentions that disqualify a tender for services and
// works filters.
var goodsIndicators = []string{
	"поставка товар",
	"закупка товар",
	"приобретение товар",
	"поставка оборудования",
	"закупка оборудования",
}

// goodsMaterialIndicators extend goodsIndicators for services filters.
var goodsMaterialIndicators = []string{
	"поставка материал",
	"закупка материал",
}

// workIndicators disqualify a tender for services filters.
var workIndicators = []string{
	"выполнение работ",
	"строительные работы",
	"ремонт",
	"строительство",
	"реконструкция",
}

// serviceIndicators disqualify a tender for works filters.
var serviceIndicators = []string{
	"оказание услуг",
	"медицинские услуги",
	"консультирование",
	"услуги по",
	"сопровождение",
}
