package model

// Usage is the provider's account usage report, consulted before a series
// fetch to avoid burning quota on a request burst that cannot complete.
type Usage struct {
	Status            string
	PlanName          string
	PlanQuota         string
	Requests          int
	RequestsQuota     int
	RequestsRemaining int
	DaysElapsed       int
	DaysRemaining     int
	DailyAverage      int
}
