package practice

// CyclePlan describes what a student has left to see in a topic.
type CyclePlan struct {
	TopicID     string
	CycleNumber int
	Unseen      []string
	// RolledOver is true when the current cycle was exhausted and the plan
	// describes the next one.
	RolledOver bool
}

// PlanCycle computes the unseen questions of the current cycle. topicQuestions
// is the topic's catalog in display order; seen are the ids marked in cycle.
// When every question was seen, the plan rolls over to cycle+1 with the full list.
func PlanCycle(topicID string, cycle int, topicQuestions, seen []string) CyclePlan {
	if cycle < 1 {
		cycle = 1
	}

	seenSet := make(map[string]struct{}, len(seen))
	for _, q := range seen {
		seenSet[q] = struct{}{}
	}

	unseen := make([]string, 0, len(topicQuestions))
	for _, q := range topicQuestions {
		if _, ok := seenSet[q]; !ok {
			unseen = append(unseen, q)
		}
	}

	if len(unseen) == 0 && len(topicQuestions) > 0 {
		return CyclePlan{
			TopicID:     topicID,
			CycleNumber: cycle + 1,
			Unseen:      append([]string(nil), topicQuestions...),
			RolledOver:  true,
		}
	}

	return CyclePlan{TopicID: topicID, CycleNumber: cycle, Unseen: unseen}
}
