package models

import "time"

// DeviceType classifies the visitor's device.
type DeviceType string

const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
	DeviceTablet  DeviceType = "tablet"
)

// GeoInfo holds the location derived from a visitor IP. All fields are
// best-effort; the zero value means the location is unknown.
type GeoInfo struct {
	CountryCode string
	CountryName string
	Region      string
	City        string
	Latitude    *float64
	Longitude   *float64
}

// Visit is a single recorded visit to a link. Rows are created once per
// qualifying visit, never mutated, and purged by the retention sweep.
type Visit struct {
	ID     int64
	LinkID int64
	// VisitorIP may be anonymized before storage depending on configuration.
	VisitorIP string
	UserAgent string
	Referrer  string
	VisitedAt time.Time

	Browser        string
	BrowserVersion string
	OS             string
	OSVersion      string
	DeviceType     DeviceType

	Geo GeoInfo
}
