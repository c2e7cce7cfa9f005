package enrollment

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// WireLayout is the timestamp format used on both the intake queue and the
// per-shard ingestion streams. Minute precision only.
const WireLayout = "2006-01-02 15:04"

// ErrMalformed marks a record that can never be processed, no matter how many
// times it is redelivered. Callers use errors.Is to separate it from
// transient failures.
var ErrMalformed = errors.New("malformed enrollment record")

// MinuteTime is a time.Time that marshals as "YYYY-MM-DD HH:MM" and truncates
// anything below minute precision on the way in.
type MinuteTime struct {
	time.Time
}

func (t MinuteTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Format(WireLayout))
}

func (t *MinuteTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := time.Parse(WireLayout, raw)
	if err != nil {
		return fmt.Errorf("parse departure_date %q: %w", raw, err)
	}
	t.Time = parsed
	return nil
}

// Record is one biometric enrollment for one passenger. Inbound messages may
// carry extra fields; decoding drops them, so a re-encoded Record is exactly
// the five-field outbound shape.
type Record struct {
	PassengerKey   string     `json:"passenger_key"`
	TraceID        string     `json:"trace_id"`
	FacialImage    string     `json:"facial_image"`
	DepartureDate  MinuteTime `json:"departure_date"`
	ArrivalAirport string     `json:"arrival_airport"`
}

// FlightKey groups passengers travelling on the same flight. Departure is
// already minute-truncated by the wire format.
type FlightKey struct {
	Departure      time.Time
	ArrivalAirport string
}

func (k FlightKey) String() string {
	return k.Departure.Format(WireLayout) + "|" + k.ArrivalAirport
}

func (r Record) FlightKey() FlightKey {
	return FlightKey{
		Departure:      r.DepartureDate.Truncate(time.Minute),
		ArrivalAirport: r.ArrivalAirport,
	}
}

// Decode parses and validates an inbound message body. Validation failures
// wrap ErrMalformed; JSON syntax failures do too, since a byte-identical
// redelivery can never succeed either.
func Decode(body []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

// Validate checks the required fields of the intake contract.
func (r Record) Validate() error {
	switch {
	case r.PassengerKey == "":
		return fmt.Errorf("%w: missing passenger_key", ErrMalformed)
	case r.TraceID == "":
		return fmt.Errorf("%w: missing trace_id", ErrMalformed)
	case r.DepartureDate.IsZero():
		return fmt.Errorf("%w: missing departure_date", ErrMalformed)
	case r.ArrivalAirport == "":
		return fmt.Errorf("%w: missing arrival_airport", ErrMalformed)
	}
	return nil
}

// Encode produces the outbound message body: the five contract fields, nothing
// else.
func (r Record) Encode() ([]byte, error) {
	body, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("encode enrollment record: %w", err)
	}
	return body, nil
}
