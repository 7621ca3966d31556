package booking

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces human-readable booking identifiers.
type IDGenerator interface {
	NewBookingID(now time.Time) string
}

// DefaultIDGenerator yields "BK" + unix millis + five uppercase
// alphanumerics drawn from a random UUID.
type DefaultIDGenerator struct{}

func (DefaultIDGenerator) NewBookingID(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:5]
	return "BK" + strconv.FormatInt(now.UnixMilli(), 10) + suffix
}
