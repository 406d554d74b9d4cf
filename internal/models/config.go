package models

// MetricConfig defines one row of the tracking grid.
type MetricConfig struct {
	ID          string  `json:"id"`
	Label       string  `json:"label"`
	LinkPackage *string `json:"linkPackage"`
	LinkScheme  *string `json:"linkScheme"`
}

// HasLink reports whether the metric points at an external app.
func (m MetricConfig) HasLink() bool {
	return (m.LinkPackage != nil && *m.LinkPackage != "") || (m.LinkScheme != nil && *m.LinkScheme != "")
}

// CategoryConfig groups metrics for display. Order is user controlled.
type CategoryConfig struct {
	Category string         `json:"category"`
	Metrics  []MetricConfig `json:"metrics"`
}

// AppSettings is the user-editable configuration persisted next to entries.
type AppSettings struct {
	Config    []CategoryConfig `json:"config"`
	ExportURL string           `json:"exportUrl"`
}

// MetricIDs returns every metric id in display order.
func (s AppSettings) MetricIDs() []string {
	var ids []string
	for _, c := range s.Config {
		for _, m := range c.Metrics {
			ids = append(ids, m.ID)
		}
	}
	return ids
}

// FindMetric looks up a metric by id.
func (s AppSettings) FindMetric(id string) (MetricConfig, bool) {
	for _, c := range s.Config {
		for _, m := range c.Metrics {
			if m.ID == id {
				return m, true
			}
		}
	}
	return MetricConfig{}, false
}

// DefaultExportURL is empty: exporting requires the user to configure one.
const DefaultExportURL = ""

// DefaultConfig returns the built-in starter config. A fresh slice is
// returned on every call so callers may mutate it.
func DefaultConfig() []CategoryConfig {
	calmPkg, calmScheme := "com.calm.android", "calm://"
	return []CategoryConfig{
		{
			Category: "Mental Health",
			Metrics: []MetricConfig{
				{ID: "talk_friend", Label: "Spoke to Friend"},
				{ID: "meditate", Label: "Meditated", LinkPackage: &calmPkg, LinkScheme: &calmScheme},
			},
		},
		{
			Category: "Physical",
			Metrics: []MetricConfig{
				{ID: "exercise", Label: "Exercised"},
				{ID: "sleep_well", Label: "Slept Well"},
			},
		},
	}
}

// DefaultSettings returns the settings used when nothing has been saved.
func DefaultSettings() AppSettings {
	return AppSettings{Config: DefaultConfig(), ExportURL: DefaultExportURL}
}
