package types

// Candidate is a search hit: the position of a vector inside a searcher and
// its squared distance to the query.
type Candidate struct {
	Id       uint32
	Distance float64
}

// Less orders candidates by distance, breaking ties by the lower Id so that
// every searcher produces the same ordering for equidistant points.
func (c Candidate) Less(o Candidate) bool {
	if c.Distance != o.Distance {
		return c.Distance < o.Distance
	}
	return c.Id < o.Id
}
