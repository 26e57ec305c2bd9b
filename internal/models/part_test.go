package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestNewPart(t *testing.T) {
	category := newCategory(t, "Battery", nil)

	p, err := NewPart(" SN-001 ", category, nil, fixedTime)
	require.NoError(t, err)
	assert.Equal(t, "SN-001", p.SerialNumber)
	assert.Equal(t, PartAvailable, p.Status)
	assert.Equal(t, category.ID, p.CategoryID)

	_, err = NewPart("", category, nil, fixedTime)
	assert.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, category.MakeReadOnly(fixedTime))
	_, err = NewPart("SN-002", category, nil, fixedTime)
	assert.ErrorIs(t, err, ErrBusinessRuleViolation)
}

func TestPart_Apply(t *testing.T) {
	all := []PartStatus{PartAvailable, PartReserved, PartInstalled, PartDefective, PartObsolete, PartArchived}
	allowed := map[PartAction][]PartStatus{
		PartActionReserve:       {PartAvailable},
		PartActionInstall:       {PartReserved},
		PartActionMarkDefective: {PartAvailable, PartReserved, PartDefective, PartObsolete},
		PartActionMakeObsolete:  {PartAvailable, PartDefective, PartObsolete},
		PartActionMakeAvailable: {PartAvailable, PartReserved, PartDefective, PartObsolete},
		PartActionArchive:       {PartAvailable, PartDefective, PartObsolete},
	}
	targets := map[PartAction]PartStatus{
		PartActionReserve:       PartReserved,
		PartActionInstall:       PartInstalled,
		PartActionMarkDefective: PartDefective,
		PartActionMakeObsolete:  PartObsolete,
		PartActionMakeAvailable: PartAvailable,
		PartActionArchive:       PartArchived,
	}

	for action, from := range allowed {
		for _, status := range all {
			ok := false
			for _, f := range from {
				if f == status {
					ok = true
				}
			}
			t.Run(string(action)+"/"+string(status), func(t *testing.T) {
				p := &Part{SerialNumber: "SN", Status: status}
				err := p.Apply(action, fixedTime)
				if ok {
					require.NoError(t, err)
					assert.Equal(t, targets[action], p.Status)
				} else {
					assert.ErrorIs(t, err, ErrBusinessRuleViolation)
					assert.Equal(t, status, p.Status)
				}
			})
		}
	}
}

func TestPart_InstalledAndArchivedAreStuck(t *testing.T) {
	p := &Part{SerialNumber: "SN", Status: PartAvailable}
	require.NoError(t, p.Apply(PartActionReserve, fixedTime))
	require.NoError(t, p.Apply(PartActionInstall, fixedTime))
	assert.Error(t, p.Apply(PartActionMakeAvailable, fixedTime))
	assert.Error(t, p.Apply(PartActionArchive, fixedTime))

	q := &Part{SerialNumber: "SN2", Status: PartDefective}
	require.NoError(t, q.Apply(PartActionArchive, fixedTime))
	assert.Error(t, q.Apply(PartActionMakeAvailable, fixedTime))
	assert.ErrorIs(t, q.ReassignOffice(primitive.NewObjectID(), fixedTime), ErrBusinessRuleViolation)
}

func TestPart_UnknownAction(t *testing.T) {
	p := &Part{Status: PartAvailable}
	assert.ErrorIs(t, p.Apply("melt", fixedTime), ErrInvalidInput)
}

func TestPart_ReassignCategory(t *testing.T) {
	from := newCategory(t, "Battery", nil)
	to := newCategory(t, "Cells", from)
	p, err := NewPart("SN-9", from, nil, fixedTime)
	require.NoError(t, err)

	require.NoError(t, p.ReassignCategory(to, fixedTime))
	assert.Equal(t, to.ID, p.CategoryID)

	require.NoError(t, from.MakeReadOnly(fixedTime))
	assert.ErrorIs(t, p.ReassignCategory(from, fixedTime), ErrBusinessRuleViolation)
	assert.Equal(t, to.ID, p.CategoryID)
}
