package questions

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"

	"quizroyale/domain"
)

type bankQuestion struct {
	text     string
	options  [4]string
	correct  int
	category string
}

// The local bank. Kept at exactly one full round so a broken upstream
// never shrinks a game.
var fallbackBank = []bankQuestion{
	{"Which chemical element has the symbol Fe?", [4]string{"Iron", "Fluorine", "Phosphorus", "Francium"}, 0, "Science"},
	{"In which year did the Berlin Wall fall?", [4]string{"1987", "1989", "1991", "1993"}, 1, "History"},
	{"Which river is the longest in the world?", [4]string{"Amazon", "Nile", "Yangtze", "Mississippi"}, 1, "Geography"},
	{"Who wrote 'Crime and Punishment'?", [4]string{"Tolstoy", "Dostoevsky", "Chekhov", "Gogol"}, 1, "Literature"},
	{"How many planets are in the Solar System?", [4]string{"7", "8", "9", "10"}, 1, "Science"},
	{"Which city is the capital of Japan?", [4]string{"Osaka", "Kyoto", "Tokyo", "Hiroshima"}, 2, "Geography"},
	{"In which year did the First World War begin?", [4]string{"1912", "1914", "1916", "1918"}, 1, "History"},
	{"Which gas makes up most of Earth's atmosphere?", [4]string{"Oxygen", "Nitrogen", "Carbon dioxide", "Argon"}, 1, "Science"},
	{"Who invented the telephone?", [4]string{"Edison", "Tesla", "Bell", "Marconi"}, 2, "Technology"},
	{"Which animal is the symbol of the WWF?", [4]string{"Tiger", "Panda", "Elephant", "Rhino"}, 1, "Nature"},
	{"What is the capital of Australia?", [4]string{"Sydney", "Melbourne", "Canberra", "Brisbane"}, 2, "Geography"},
	{"Who wrote 'War and Peace'?", [4]string{"Dostoevsky", "Tolstoy", "Pushkin", "Turgenev"}, 1, "Literature"},
	{"Which ocean is the largest?", [4]string{"Atlantic", "Indian", "Pacific", "Arctic"}, 2, "Geography"},
	{"In what year was Apple founded?", [4]string{"1974", "1976", "1978", "1980"}, 1, "Technology"},
	{"Which country gave the Statue of Liberty to the USA?", [4]string{"England", "Germany", "France", "Spain"}, 2, "History"},
	{"How many bones are in an adult human body?", [4]string{"186", "206", "226", "246"}, 1, "Science"},
	{"Who directed the film 'Titanic'?", [4]string{"Spielberg", "Cameron", "Scorsese", "Nolan"}, 1, "Movies"},
	{"Which metal is liquid at room temperature?", [4]string{"Lead", "Tin", "Mercury", "Zinc"}, 2, "Science"},
	{"What is the capital of Canada?", [4]string{"Toronto", "Montreal", "Vancouver", "Ottawa"}, 3, "Geography"},
	{"In which year did humans first land on the Moon?", [4]string{"1965", "1967", "1969", "1971"}, 2, "History"},
	{"Which planet is closest to the Sun?", [4]string{"Venus", "Mercury", "Mars", "Earth"}, 1, "Science"},
	{"Who is the author of 'Harry Potter'?", [4]string{"Stephen King", "J.K. Rowling", "Tolkien", "Lewis"}, 1, "Literature"},
	{"Which sea is the saltiest?", [4]string{"Black Sea", "Red Sea", "Dead Sea", "Caspian Sea"}, 2, "Geography"},
	{"In what year was ARPANET created?", [4]string{"1965", "1969", "1973", "1977"}, 1, "Technology"},
	{"Which element has the symbol Au?", [4]string{"Silver", "Gold", "Copper", "Aluminium"}, 1, "Science"},
	{"What is the capital of Brazil?", [4]string{"Rio de Janeiro", "Sao Paulo", "Brasilia", "Salvador"}, 2, "Geography"},
	{"Who wrote 'The Little Prince'?", [4]string{"Saint-Exupery", "Hugo", "Dumas", "Verne"}, 0, "Literature"},
	{"Which is the highest mountain in the world?", [4]string{"K2", "Everest", "Kangchenjunga", "Makalu"}, 1, "Geography"},
	{"In which year did the USSR dissolve?", [4]string{"1989", "1990", "1991", "1992"}, 2, "History"},
	{"Which vitamin is produced by sunlight exposure?", [4]string{"A", "B", "C", "D"}, 3, "Science"},
}

// Fallback reshuffles the local bank into a fresh question set. Failing
// to cover count here means the bank itself is misconfigured.
func Fallback(rng *rand.Rand, count int) ([]domain.Question, error) {
	if count > len(fallbackBank) {
		return nil, fmt.Errorf("fallback bank holds %d questions, need %d", len(fallbackBank), count)
	}

	order := rng.Perm(len(fallbackBank))
	seed := uuid.NewString()

	result := make([]domain.Question, 0, count)
	for i, bankIdx := range order[:count] {
		q := fallbackBank[bankIdx]
		result = append(result, domain.Question{
			Id:           fmt.Sprintf("fallback-%s-%d", seed, i),
			Text:         q.text,
			Options:      q.options[:],
			CorrectIndex: q.correct,
			Category:     q.category,
			Number:       i + 1,
		})
	}

	return result, nil
}
