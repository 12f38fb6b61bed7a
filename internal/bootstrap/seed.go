package bootstrap

import (
	"github.com/studypets/studypets-core/internal/domain/pet"
	"github.com/studypets/studypets-core/internal/domain/practice"
	"github.com/studypets/studypets-core/internal/infrastructure/persistence/memory"
)

// DemoTopicID is the topic SeedDemo fills with questions.
const DemoTopicID = "demo-fractions"

var demoPets = []pet.Definition{
	{ID: "pet-sprout", Name: "Sprout", Rarity: pet.Common},
	{ID: "pet-pebble", Name: "Pebble", Rarity: pet.Common},
	{ID: "pet-puddle", Name: "Puddle", Rarity: pet.Common},
	{ID: "pet-ember", Name: "Ember", Rarity: pet.Rare},
	{ID: "pet-gust", Name: "Gust", Rarity: pet.Rare},
	{ID: "pet-prism", Name: "Prism", Rarity: pet.Epic},
	{ID: "pet-nova", Name: "Nova", Rarity: pet.Legendary},
}

var demoQuestions = []practice.AnswerKey{
	{QuestionID: "q-frac-1", TopicID: DemoTopicID, Type: practice.QuestionSingleChoice, CorrectOptions: []string{"b"}},
	{QuestionID: "q-frac-2", TopicID: DemoTopicID, Type: practice.QuestionSingleChoice, CorrectOptions: []string{"a"}},
	{QuestionID: "q-frac-3", TopicID: DemoTopicID, Type: practice.QuestionMultiSelect, CorrectOptions: []string{"a", "c"}},
	{QuestionID: "q-frac-4", TopicID: DemoTopicID, Type: practice.QuestionText, AcceptedAnswers: []string{"3/4", "0.75"}},
	{QuestionID: "q-frac-5", TopicID: DemoTopicID, Type: practice.QuestionText, AcceptedAnswers: []string{"1/2", "0.5"}},
}

// SeedDemo loads a small pet catalog and one question topic so a development
// process without a database is usable end to end.
func SeedDemo(db *memory.DB) {
	for _, def := range demoPets {
		db.AddPetDefinition(def)
	}
	for _, key := range demoQuestions {
		db.AddQuestion(key)
	}
}
