package client

import "sort"

// mergeByID inserts m into msgs unless a message with the same id is already
// present. The slice stays ordered by creation time, ties broken by id so
// the order is stable across replays. It reports whether m was added.
func mergeByID(msgs []Message, m Message) ([]Message, bool) {
	for _, existing := range msgs {
		if existing.ID == m.ID {
			return msgs, false
		}
	}

	msgs = append(msgs, m)
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].CreatedAt != msgs[j].CreatedAt {
			return msgs[i].CreatedAt < msgs[j].CreatedAt
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, true
}
