package models

import (
	"encoding/json"
	"strings"
)

// Quick-entry reasons offered at the booth.
const (
	ReasonTooExpensive = "Too expensive"
	ReasonJustLooking  = "Just looking/browsing"
	ReasonOutOfStock   = "Desired item out of stock"
	ReasonNoTime       = "No time to purchase"
	ReasonGeneric      = "Generic - no specific reason"

	// ReasonUnknown is how an empty reason is reported.
	ReasonUnknown = "Unknown"
)

// QuickReasons lists the quick-entry reasons in button order.
var QuickReasons = []string{
	ReasonTooExpensive,
	ReasonJustLooking,
	ReasonOutOfStock,
	ReasonNoTime,
	ReasonGeneric,
}

const TurnedAwayType = "turned_away"

// TurnedAwayEntry records a visitor who left without buying.
type TurnedAwayEntry struct {
	ID     string
	Reason string
	Stamp
}

// DisplayReason returns the reason, or ReasonUnknown when it is blank.
func (e TurnedAwayEntry) DisplayReason() string {
	if strings.TrimSpace(e.Reason) == "" {
		return ReasonUnknown
	}
	return e.Reason
}

type turnedAwayDoc struct {
	ID        string `json:"id,omitempty"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
	Date      string `json:"date"`
	Time      string `json:"time"`
	Type      string `json:"type"`
}

func (e TurnedAwayEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(turnedAwayDoc{
		ID:        e.ID,
		Reason:    e.Reason,
		Timestamp: formatTimestamp(e.Timestamp),
		Date:      e.Date,
		Time:      e.Time,
		Type:      TurnedAwayType,
	})
}

func (e *TurnedAwayEntry) UnmarshalJSON(data []byte) error {
	var doc turnedAwayDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	ts, err := ParseTimestamp(doc.Timestamp)
	if err != nil {
		return err
	}
	*e = TurnedAwayEntry{
		ID:     doc.ID,
		Reason: doc.Reason,
		Stamp:  Stamp{Timestamp: ts, Date: doc.Date, Time: doc.Time},
	}
	return nil
}
