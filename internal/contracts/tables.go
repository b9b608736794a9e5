package contracts

// Raw tables written by the ingestion side and the fields compositors read.
const (
	TableStockDaily = "stock_daily" // 股票日行情
	FieldHigh       = "high"
	FieldLow        = "low"
	FieldClose      = "close"

	TableFundDividend = "fund_dividend" // 公募基金分红
	FieldDividend     = "dividend"

	TableOTCFundNAV = "otc_fund_nav" // 场外基金净值
	FieldUnitNAV    = "unit_nav"

	TableExchangeFundDaily = "exchange_fund_daily" // 场内基金日行情

	TableStockUnits  = "stock_units" // 股本
	FieldFloatShares = "float_shares"
	FieldTotalShares = "total_shares"
)

// Derived tables. Each is owned by exactly one compositor, except
// adj_factor which the vendor feed fills for stocks and the fund
// compositor fills for funds.
const (
	TableAdjFactor = "adj_factor" // 复权因子
	FieldAdjFactor = "adj_factor"

	TableConstLimit = "const_limit" // 一字涨跌停
	FieldLimitFlag  = "limit_flag"

	TableCustomIndex = "custom_index" // 自合成指数
	FieldReturn      = "return"
)

// OTCFundSuffix marks off-exchange funds, whose price is the unit NAV
const OTCFundSuffix = ".OF"

// Tables lists every table in the store layout, raw first
var Tables = []string{
	TableStockDaily,
	TableStockUnits,
	TableFundDividend,
	TableOTCFundNAV,
	TableExchangeFundDaily,
	TableAdjFactor,
	TableConstLimit,
	TableCustomIndex,
}

// KnownTable reports whether name is in Tables
func KnownTable(name string) bool {
	for _, t := range Tables {
		if t == name {
			return true
		}
	}
	return false
}
