package core

import (
	"encoding/json"
	"fmt"
)

// RepetitionInfo is the flat JSON shape of an Installment.
type RepetitionInfo struct {
	GroupID string `json:"groupId"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
}

// TransactionJSON is the flat wire shape of a Transaction.
type TransactionJSON struct {
	ID             string          `json:"id,omitempty"`
	Date           Date            `json:"date"`
	Description    string          `json:"description"`
	Category       string          `json:"category"`
	Amount         Money           `json:"amount"`
	Type           TxType          `json:"type"`
	Card           string          `json:"card,omitempty"`
	IsFixed        bool            `json:"isFixed,omitempty"`
	RepetitionInfo *RepetitionInfo `json:"repetitionInfo,omitempty"`
}

func (t Transaction) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.ToJSON())
}

// ToJSON flattens the schedule into isFixed / repetitionInfo.
func (t Transaction) ToJSON() TransactionJSON {
	out := TransactionJSON{
		ID:          t.ID,
		Date:        t.Date,
		Description: t.Description,
		Category:    t.Category,
		Amount:      t.Amount,
		Type:        t.Type,
		Card:        t.Card,
	}
	switch s := t.Schedule.(type) {
	case Fixed:
		out.IsFixed = true
	case Installment:
		out.RepetitionInfo = &RepetitionInfo{GroupID: s.GroupID, Current: s.Current, Total: s.Total}
	}
	return out
}

// UnmarshalJSON rejects payloads that claim to be both fixed and repeated.
func (t *Transaction) UnmarshalJSON(b []byte) error {
	var in TransactionJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	if in.IsFixed && in.RepetitionInfo != nil {
		return ErrConflictingKind
	}

	out := Transaction{
		ID:          in.ID,
		Date:        in.Date,
		Description: in.Description,
		Category:    in.Category,
		Amount:      in.Amount,
		Type:        in.Type,
		Card:        in.Card,
		Schedule:    Single{},
	}
	switch {
	case in.IsFixed:
		out.Schedule = Fixed{}
	case in.RepetitionInfo != nil:
		out.Schedule = Installment{
			GroupID: in.RepetitionInfo.GroupID,
			Current: in.RepetitionInfo.Current,
			Total:   in.RepetitionInfo.Total,
		}
	}
	*t = out
	return nil
}

// StatusText is the label shown next to scheduled entries.
func (t Transaction) StatusText() string {
	switch s := t.Schedule.(type) {
	case Fixed:
		return "Fixa"
	case Installment:
		return fmt.Sprintf("Repetição %d de %d", s.Current, s.Total)
	}
	return ""
}
