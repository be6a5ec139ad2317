package loadsim

type Counter struct {
	Searches     int
	TotalResults int
	Empty        int
}

func (c *Counter) Add(resultCount int) {
	c.Searches++
	c.TotalResults += resultCount
	if resultCount == 0 {
		c.Empty++
	}
}

// HitRate is the share of searches that returned at least one result.
func (c Counter) HitRate() float64 {
	if c.Searches == 0 {
		return 0
	}
	return float64(c.Searches-c.Empty) / float64(c.Searches)
}
