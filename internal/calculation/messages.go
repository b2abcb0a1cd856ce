package calculation

// Warning codes and user-facing texts.

const (
	WarnCodeNoDuty           = "NO_DUTY"
	WarnCodeJapanCurrency    = "JAPAN_CURRENCY"
	WarnCodeNonPassenger     = "NON_PASSENGER"
	WarnCodeNoUtilization    = "NO_UTILIZATION"
	WarnCodeSanctionsUnknown = "SANCTIONS_UNKNOWN"
)

const (
	warnNoDutyRate = "Ставка пошлины для возрастной категории не найдена; пошлина принята равной 0"

	warnJapanTierCurrency = "Японские пороги расходов заданы в JPY; цена покупки указана в другой валюте"

	warnNonPassenger = "Расчёт утильсбора выполнен для легковых (M1). Для выбранного типа ТС " +
		"обратитесь в поддержку для уточнения ставки."

	warnNoUtilization = "Диапазон утильсбора для указанных объёма и мощности не найден; сбор принят равным 0"

	warnSanctionsUnknown = "Статус санкционности автомобиля не подтверждён. Фрахт может отличаться; " +
		"для уточнения обратитесь в поддержку."
)
