package services

import (
	"strings"
	"time"

	"github.com/rickar/cal/v2"
	"github.com/rickar/cal/v2/at"
	"github.com/rickar/cal/v2/ch"
	"github.com/rickar/cal/v2/de"
	"github.com/rickar/cal/v2/fr"
	"github.com/rickar/cal/v2/gb"
	"github.com/rickar/cal/v2/nl"
	"github.com/rickar/cal/v2/us"
)

// HolidayService decides whether scheduled mail jobs run on a given day
type HolidayService struct {
	calendars map[string]*cal.BusinessCalendar
}

type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

var supportedCountries = []CountryInfo{
	{Code: "DE", Name: "Germany"},
	{Code: "AT", Name: "Austria"},
	{Code: "CH", Name: "Switzerland"},
	{Code: "NL", Name: "Netherlands"},
	{Code: "FR", Name: "France"},
	{Code: "GB", Name: "United Kingdom"},
	{Code: "US", Name: "United States"},
	{Code: "NONE", Name: "Weekdays Only (Mon-Fri)"},
}

func NewHolidayService() *HolidayService {
	s := &HolidayService{
		calendars: make(map[string]*cal.BusinessCalendar),
	}
	s.calendars["DE"] = s.createCalendar("Germany", de.Holidays...)
	s.calendars["AT"] = s.createCalendar("Austria", at.Holidays...)
	s.calendars["CH"] = s.createCalendar("Switzerland", ch.Holidays...)
	s.calendars["NL"] = s.createCalendar("Netherlands", nl.Holidays...)
	s.calendars["FR"] = s.createCalendar("France", fr.Holidays...)
	s.calendars["GB"] = s.createCalendar("United Kingdom", gb.Holidays...)
	s.calendars["US"] = s.createCalendar("United States", us.Holidays...)
	return s
}

func (s *HolidayService) createCalendar(name string, holidays ...*cal.Holiday) *cal.BusinessCalendar {
	c := cal.NewBusinessCalendar()
	c.Name = name
	c.AddHoliday(holidays...)
	return c
}

// IsWorkday falls back to a plain weekday check for unknown country codes
func (s *HolidayService) IsWorkday(t time.Time, countryCode string) bool {
	c, ok := s.calendars[strings.ToUpper(countryCode)]
	if !ok {
		return !cal.IsWeekend(t)
	}
	return c.IsWorkday(t)
}

func (s *HolidayService) IsHoliday(t time.Time, countryCode string) bool {
	return !s.IsWorkday(t, countryCode)
}

func (s *HolidayService) GetSupportedCountries() []CountryInfo {
	return supportedCountries
}
