package domain

import (
	"fmt"
	"regexp"
	"time"
)

// Order numbers look like SO202601150001: prefix, date, 4-digit daily
// sequence. Delivery numbers use the DN prefix with the same layout.
const (
	orderNoPrefix    = "SO"
	deliveryNoPrefix = "DN"
)

var deliveryNoPattern = regexp.MustCompile(`^DN\d{8}\d{4}$`)

func FormatOrderNo(day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", orderNoPrefix, day.Format("20060102"), seq)
}

func FormatDeliveryNumber(day time.Time, seq int) string {
	return fmt.Sprintf("%s%s%04d", deliveryNoPrefix, day.Format("20060102"), seq)
}

func ValidDeliveryNumber(n string) bool { return deliveryNoPattern.MatchString(n) }

// DayStart truncates t to local midnight, the boundary both sequences
// reset on.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
