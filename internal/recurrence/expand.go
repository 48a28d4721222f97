package recurrence

import (
	"encoding/json"
	"slices"
	"strings"

	"carteira/internal/core"
)

const virtualSep = "@"

// Visible is a transaction as shown in one month. For virtual occurrences of
// a fixed template, ID is synthesized and OriginalID names the template.
type Visible struct {
	core.Transaction
	Status     string
	OriginalID string
}

type visibleJSON struct {
	core.TransactionJSON
	Status     string `json:"status,omitempty"`
	OriginalID string `json:"originalId,omitempty"`
}

func (v Visible) MarshalJSON() ([]byte, error) {
	return json.Marshal(visibleJSON{
		TransactionJSON: v.Transaction.ToJSON(),
		Status:          v.Status,
		OriginalID:      v.OriginalID,
	})
}

// StoredID is the id of the stored record behind v.
func (v Visible) StoredID() string {
	return ResolveID(v.ID, v.OriginalID)
}

// VirtualID is the display id of a fixed template's occurrence in m.
func VirtualID(templateID string, m Month) string {
	return templateID + virtualSep + m.String()
}

// ResolveID maps a visible id back to the stored record id. originalID wins
// when set; otherwise a trailing "@YYYY-MM" is stripped.
func ResolveID(id, originalID string) string {
	if originalID != "" {
		return originalID
	}
	if i, _, ok := splitVirtual(id); ok {
		return id[:i]
	}
	return id
}

// OccurrenceMonth reports the month a virtual id was synthesized for.
func OccurrenceMonth(id string) (Month, bool) {
	_, m, ok := splitVirtual(id)
	return m, ok
}

func splitVirtual(id string) (int, Month, bool) {
	i := strings.LastIndex(id, virtualSep)
	if i <= 0 {
		return 0, Month{}, false
	}
	m, err := ParseMonth(id[i+len(virtualSep):])
	if err != nil {
		return 0, Month{}, false
	}
	return i, m, true
}

// Expand returns the transactions visible in month m, most recent first.
// Fixed templates appear in every month from their own month onward, on
// their day of month clamped to the month length. Other records appear only
// in the month of their stored date.
func Expand(txs []core.Transaction, m Month) []Visible {
	out := make([]Visible, 0, len(txs))
	for _, tx := range txs {
		if tx.IsFixed() {
			if m.Before(MonthOf(tx.Date.Time)) {
				continue
			}
			occ := tx
			occ.ID = VirtualID(tx.ID, m)
			occ.Date = m.Day(tx.Date.Day())
			out = append(out, Visible{Transaction: occ, Status: tx.StatusText(), OriginalID: tx.ID})
			continue
		}
		if m.Contains(tx.Date) {
			out = append(out, Visible{Transaction: tx, Status: tx.StatusText()})
		}
	}

	slices.SortStableFunc(out, func(a, b Visible) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out
}

// DeletionSet lists the stored ids removed when target is deleted. For an
// installment that is target plus every later member of its group; members
// may include target itself and records of other groups, which are ignored.
func DeletionSet(target core.Transaction, members []core.Transaction) []string {
	ids := []string{target.ID}
	inst, ok := target.Installment()
	if !ok {
		return ids
	}
	for _, m := range members {
		if m.ID == target.ID {
			continue
		}
		other, ok := m.Installment()
		if !ok || other.GroupID != inst.GroupID {
			continue
		}
		if other.Current >= inst.Current {
			ids = append(ids, m.ID)
		}
	}
	return ids
}
