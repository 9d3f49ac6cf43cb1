package model

import "sort"

// AssigneeRanking is the log-score computed for one assignee.
type AssigneeRanking struct {
	Assignee string
	Score    float64
	// Order is the assignee's position in Model.Assignees; it breaks ties.
	Order int
}

// AssigneeRankings is a slice of AssigneeRanking that supports sorting and utility methods.
type AssigneeRankings []AssigneeRanking

// Len implements sort.Interface.
func (r AssigneeRankings) Len() int {
	return len(r)
}

// Less implements sort.Interface - higher scores come first, then first-seen order.
func (r AssigneeRankings) Less(i, j int) bool {
	if r[i].Score != r[j].Score {
		return r[i].Score > r[j].Score
	}
	return r[i].Order < r[j].Order
}

// Swap implements sort.Interface.
func (r AssigneeRankings) Swap(i, j int) {
	r[i], r[j] = r[j], r[i]
}

// Sort sorts the rankings by score in descending order.
func (r AssigneeRankings) Sort() {
	sort.Sort(r)
}

// Top returns the highest-scoring assignee, or nil if empty.
func (r AssigneeRankings) Top() *AssigneeRanking {
	if len(r) == 0 {
		return nil
	}
	r.Sort()
	return &r[0]
}

// TopN returns the N highest-scoring assignees.
func (r AssigneeRankings) TopN(n int) AssigneeRankings {
	if n <= 0 {
		return AssigneeRankings{}
	}

	r.Sort()

	if n > len(r) {
		n = len(r)
	}

	result := make(AssigneeRankings, n)
	copy(result, r[:n])
	return result
}
