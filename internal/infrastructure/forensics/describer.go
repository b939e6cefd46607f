// Package forensics enriches audit events with user-agent and geo details.
package forensics

import (
	"fmt"
	"net"
	"strings"

	"github.com/mssola/useragent"
	"github.com/oschwald/geoip2-golang"

	"github.com/nexthire/nexthire-api/internal/core/domain"
)

const (
	DeviceBot     = "bot"
	DeviceMobile  = "mobile"
	DeviceDesktop = "desktop"
	DeviceUnknown = "unknown"
)

// CityLookup resolves an IP to a city record. *geoip2.Reader satisfies it.
type CityLookup interface {
	City(ip net.IP) (*geoip2.City, error)
}

// Describer implements ports.ClientDescriber. A nil CityLookup disables
// geolocation.
type Describer struct {
	geo CityLookup
}

func NewDescriber(geo CityLookup) *Describer {
	return &Describer{geo: geo}
}

// OpenGeoIP opens a MaxMind GeoLite2/GeoIP2 City database.
func OpenGeoIP(path string) (*geoip2.Reader, error) {
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip db %s: %w", path, err)
	}
	return r, nil
}

func (d *Describer) Describe(ip, userAgent string) domain.ClientInfo {
	info := domain.ClientInfo{
		IP:         ip,
		UserAgent:  userAgent,
		DeviceType: DeviceUnknown,
	}
	if userAgent != "" {
		ua := useragent.New(userAgent)
		name, version := ua.Browser()
		info.Browser = strings.TrimSpace(name + " " + version)
		info.OS = ua.OS()
		info.DeviceType = deviceType(ua)
	}
	info.Geo = d.locate(ip)
	return info
}

func deviceType(ua *useragent.UserAgent) string {
	switch {
	case ua.Bot():
		return DeviceBot
	case ua.Mobile():
		return DeviceMobile
	default:
		return DeviceDesktop
	}
}

func (d *Describer) locate(raw string) *domain.GeoInfo {
	if d.geo == nil {
		return nil
	}
	ip := net.ParseIP(raw)
	if ip == nil || ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() {
		return nil
	}
	rec, err := d.geo.City(ip)
	if err != nil || rec == nil {
		return nil
	}
	geo := &domain.GeoInfo{
		Country:   rec.Country.IsoCode,
		City:      rec.City.Names["en"],
		Latitude:  rec.Location.Latitude,
		Longitude: rec.Location.Longitude,
	}
	if *geo == (domain.GeoInfo{}) {
		return nil
	}
	return geo
}
