package domain

// Household is a read-side grouping of applications sharing a household id.
// It is never persisted.
type Household struct {
	ID        string        `json:"householdId"`
	Principal *Application  `json:"principal,omitempty"`
	Members   []Application `json:"members"`
}

// GroupByHousehold groups applications by household id, preserving first-seen
// order of households. Within a household principals sort first and a repeated
// email keeps only its first record. Unresolved applications group under "".
func GroupByHousehold(apps []Application) []Household {
	var order []string
	byID := map[string][]Application{}
	for _, a := range apps {
		id := a.Household()
		if _, ok := byID[id]; !ok {
			order = append(order, id)
		}
		byID[id] = append(byID[id], a)
	}

	out := make([]Household, 0, len(order))
	for _, id := range order {
		members := byID[id]
		ordered := make([]Application, 0, len(members))
		for _, m := range members {
			if m.IsPrincipal {
				ordered = append(ordered, m)
			}
		}
		for _, m := range members {
			if !m.IsPrincipal {
				ordered = append(ordered, m)
			}
		}

		h := Household{ID: id}
		seen := map[string]bool{}
		for _, m := range ordered {
			if seen[m.ApplicantEmail] {
				continue
			}
			seen[m.ApplicantEmail] = true
			if m.IsPrincipal && h.Principal == nil && id != "" {
				p := m
				h.Principal = &p
			}
			h.Members = append(h.Members, m)
		}
		out = append(out, h)
	}
	return out
}
