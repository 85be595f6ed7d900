package content

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"pulse-bot/internal/models"
)

// Store holds the static joke and book recommendation pools
type Store struct {
	jokes []string
	books []models.Book
}

type jokesFile struct {
	Jokes []string `json:"jokes"`
}

// Load reads jokes.json and book_recommendations.json from dir
func Load(dir string) (*Store, error) {
	raw, err := os.ReadFile(filepath.Join(dir, "jokes.json"))
	if err != nil {
		return nil, fmt.Errorf("read jokes: %w", err)
	}
	var jf jokesFile
	if err := json.Unmarshal(raw, &jf); err != nil {
		return nil, fmt.Errorf("parse jokes: %w", err)
	}
	if len(jf.Jokes) == 0 {
		return nil, fmt.Errorf("jokes.json has no jokes")
	}

	raw, err = os.ReadFile(filepath.Join(dir, "book_recommendations.json"))
	if err != nil {
		return nil, fmt.Errorf("read book recommendations: %w", err)
	}
	var books []models.Book
	if err := json.Unmarshal(raw, &books); err != nil {
		return nil, fmt.Errorf("parse book recommendations: %w", err)
	}
	if len(books) == 0 {
		return nil, fmt.Errorf("book_recommendations.json has no books")
	}

	return &Store{jokes: jf.Jokes, books: books}, nil
}

// RandomJoke picks one joke from the pool
func (s *Store) RandomJoke() string {
	return s.jokes[rand.Intn(len(s.jokes))]
}

// RandomBook picks one book recommendation from the pool
func (s *Store) RandomBook() models.Book {
	return s.books[rand.Intn(len(s.books))]
}
