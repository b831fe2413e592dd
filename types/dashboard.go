package types

// StatusCount is the number of reports in one status.
type StatusCount struct {
	Status Status `json:"status"`
	Count  int    `json:"count"`
}

// ConditionCount is the number of assets in one condition.
type ConditionCount struct {
	Condition string `json:"kondisi"`
	Count     int    `json:"count"`
}

// Dashboard aggregates the admin overview.
type Dashboard struct {
	TotalLaporan  int              `json:"totalLaporan"`
	StatusCount   []StatusCount    `json:"statusCount"`
	TotalSarpras  int              `json:"totalSarpras"`
	KondisiCount  []ConditionCount `json:"kondisiCount"`
	RecentLaporan []Laporan        `json:"recentLaporan"`
}
