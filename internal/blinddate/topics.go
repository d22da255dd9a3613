// internal/blinddate/topics.go
// Conversation topic pool for blind dates. Topics escalate loosely from
// icebreakers toward deeper questions; the pool is drawn without
// repetition per session and reshuffled once exhausted.

package blinddate

import "math/rand"

// TopicCategory groups topics by tone
type TopicCategory string

const (
	CategoryLight    TopicCategory = "light"
	CategoryPlayful  TopicCategory = "playful"
	CategoryDeep     TopicCategory = "deep"
	CategoryRomantic TopicCategory = "romantic"
)

// Topic is one conversation prompt
type Topic struct {
	Text     string        `json:"text"`
	Category TopicCategory `json:"category"`
}

// defaultTopics is ordered roughly light -> deep so early draws stay safe
var defaultTopics = []Topic{
	{"What made you smile today?", CategoryLight},
	{"Coffee or tea, and how do you take it?", CategoryLight},
	{"What's the last song you had on repeat?", CategoryLight},
	{"If you could have dinner anywhere tonight, where would it be?", CategoryLight},
	{"What's a hobby you could talk about for hours?", CategoryLight},
	{"What's the best thing you've eaten this week?", CategoryLight},
	{"Would you rather explore the deep sea or outer space?", CategoryPlayful},
	{"What's the most spontaneous thing you've ever done?", CategoryPlayful},
	{"If your life had a theme song, what would it be?", CategoryPlayful},
	{"What's a totally useless talent you're secretly proud of?", CategoryPlayful},
	{"Which fictional world would you move to tomorrow?", CategoryPlayful},
	{"What's something you've changed your mind about recently?", CategoryDeep},
	{"What does a perfect ordinary day look like for you?", CategoryDeep},
	{"Who has influenced you the most, and how?", CategoryDeep},
	{"What's something you're working on becoming better at?", CategoryDeep},
	{"What's a memory you'd relive if you could?", CategoryDeep},
	{"What makes you feel instantly comfortable around someone?", CategoryRomantic},
	{"What's your idea of a great first date?", CategoryRomantic},
	{"What little gestures mean the most to you?", CategoryRomantic},
	{"When do you feel most like yourself?", CategoryRomantic},
}

// topicDeck deals topics for one session without repetition
type topicDeck struct {
	pool []Topic
	next int
	rng  *rand.Rand
}

func newTopicDeck(pool []Topic, rng *rand.Rand) *topicDeck {
	d := &topicDeck{pool: make([]Topic, len(pool)), rng: rng}
	copy(d.pool, pool)
	// Shuffle the tail so each session sees a different order, but keep
	// the first few icebreakers in place
	if len(d.pool) > 6 {
		tail := d.pool[6:]
		rng.Shuffle(len(tail), func(i, j int) {
			tail[i], tail[j] = tail[j], tail[i]
		})
	}
	return d
}

// draw returns the next topic, reshuffling the deck once exhausted
func (d *topicDeck) draw() Topic {
	if len(d.pool) == 0 {
		return Topic{Text: "Tell me something nobody would guess about you.", Category: CategoryLight}
	}

	if d.next >= len(d.pool) {
		d.rng.Shuffle(len(d.pool), func(i, j int) {
			d.pool[i], d.pool[j] = d.pool[j], d.pool[i]
		})
		d.next = 0
	}

	t := d.pool[d.next]
	d.next++
	return t
}
