package flow

import (
	"errors"

	"pinrelay/internal/types"
)

func (s *UnitTestSuite) TestFilterClients() {
	clients := map[string]types.Client{
		"a": {Key: "a", FullName: "A", Phone: "+966512345678", Country: "SA", Pin: "111111"},
		"b": {Key: "b", FullName: "B", Country: "SY"},
	}

	all, err := FilterClients("", clients)
	s.NoError(err)
	s.Len(all, 2)
	s.True(all["a"].HasPin)
	s.False(all["b"].HasPin)

	withPhone, err := FilterClients("phone != null", clients)
	s.NoError(err)
	s.Len(withPhone, 1)
	s.Contains(withPhone, "a")

	sy, err := FilterClients("country == 'SY'", clients)
	s.NoError(err)
	s.Len(sy, 1)
	s.Contains(sy, "b")

	// non-boolean results never match
	none, err := FilterClients("fullName", clients)
	s.NoError(err)
	s.Empty(none)

	_, err = FilterClients("country ==", clients)
	s.True(errors.Is(err, ErrInvalidFilter))
}

func (s *UnitTestSuite) TestFilterClientsNestedFields() {
	clients := map[string]types.Client{
		"a": {Key: "a", FullName: "A", IDs: []string{"700100", "700101"}, CustomFields: map[string]string{"tier": "gold"}},
		"b": {Key: "b", FullName: "B", IDs: []string{"700200"}},
		"c": {Key: "c", FullName: "C"},
	}

	byID, err := FilterClients("ids != null && contains(ids, '700101')", clients)
	s.NoError(err)
	s.Len(byID, 1)
	s.Contains(byID, "a")

	gold, err := FilterClients("customFields.tier == 'gold'", clients)
	s.NoError(err)
	s.Len(gold, 1)
	s.Contains(gold, "a")

	// a missing path evaluates to null
	noIDs, err := FilterClients("ids == null", clients)
	s.NoError(err)
	s.Len(noIDs, 1)
	s.Contains(noIDs, "c")
}
