package asdu

import (
	"encoding/binary"
	"encoding/json"
	"time"
)

const CP56Len = 7

// Timestamp is a decoded CP56Time2a value. Valid is false when a calendar
// field is out of range; decoding never fails.
type Timestamp struct {
	Time           time.Time
	Valid          bool
	StationInvalid bool
	Summer         bool
	Raw            [CP56Len]byte
}

// DecodeCP56Time2a reads seven bytes. Bytes 0-1 carry the full
// milliseconds-within-minute value (0..59999).
func DecodeCP56Time2a(b []byte) Timestamp {
	var ts Timestamp
	if len(b) < CP56Len {
		copy(ts.Raw[:], b)
		return ts
	}
	copy(ts.Raw[:], b[:CP56Len])
	ms := int(binary.LittleEndian.Uint16(b[0:2]))
	minute := int(b[2] & 0x3F)
	hour := int(b[3] & 0x1F)
	day := int(b[4] & 0x1F)
	month := int(b[5] & 0x0F)
	year := 2000 + int(b[6]&0x7F)
	ts.StationInvalid = b[2]&0x80 != 0
	ts.Summer = b[3]&0x80 != 0

	if month < 1 || month > 12 || day < 1 || day > 31 || hour > 23 || minute > 59 || ms > 59999 {
		return ts
	}
	t := time.Date(year, time.Month(month), day, hour, minute, ms/1000, (ms%1000)*int(time.Millisecond), time.UTC)
	if t.Day() != day {
		return ts
	}
	ts.Time = t
	ts.Valid = true
	return ts
}

// EncodeCP56Time2a renders t's wall clock fields; the location is not converted.
func EncodeCP56Time2a(t time.Time) [CP56Len]byte {
	var b [CP56Len]byte
	ms := uint16(t.Second()*1000 + t.Nanosecond()/int(time.Millisecond))
	binary.LittleEndian.PutUint16(b[0:2], ms)
	b[2] = byte(t.Minute()) & 0x3F
	b[3] = byte(t.Hour()) & 0x1F
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	b[4] = byte(t.Day())&0x1F | byte(weekday)<<5
	b[5] = byte(t.Month()) & 0x0F
	b[6] = byte(t.Year()-2000) & 0x7F
	return b
}

func (ts Timestamp) String() string {
	if !ts.Valid {
		return "invalid"
	}
	return ts.Time.Format("2006-01-02T15:04:05.000Z07:00")
}

func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(ts.String())
}
