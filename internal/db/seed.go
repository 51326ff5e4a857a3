package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SeedTestData resets the database and populates it with demo profiles,
// swipes and the matches the reciprocal likes produce.
//
// Behavior:
//  1. Clears existing rows in all core tables.
//  2. Creates 20 profiles with hashed passwords.
//  3. Generates ~150 swipes with ~70% likes; every 3rd pair is forced
//     mutual, and a match row is created for each mutual pair.
//
// Compatible with both MySQL and SQLite.
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"messages", "blocks", "matches", "swipes", "profiles"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	log.Println("Cleared existing data")

	// --- Seed Profiles ---
	profiles := make([]Profile, 0, 20)
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		profile := Profile{
			ID:           uuid.NewString(),
			DisplayName:  fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Active:       true,
		}
		if err := db.Create(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile: %w", err)
		}
		profiles = append(profiles, profile)
	}
	log.Println("Seeded 20 profiles.")

	// --- Seed Swipes and Matches ---
	counter := 0
	for i := range profiles {
		for j := 0; j < 8; j++ {
			target := profiles[r.Intn(len(profiles))]
			swiper := profiles[i]
			if swiper.ID == target.ID {
				continue
			}

			value := SwipeDislike
			if r.Intn(100) < 70 {
				value = SwipeLike
			}

			// guarantee mutual likes every 3rd pair
			mutual := counter%3 == 0
			if mutual {
				value = SwipeLike
				recip := Swipe{
					ID:       uuid.NewString(),
					SwiperID: target.ID,
					TargetID: swiper.ID,
					Value:    SwipeLike,
				}
				db.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "target_id"}},
					DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
				}).Create(&recip)
			}

			swipe := Swipe{
				ID:       uuid.NewString(),
				SwiperID: swiper.ID,
				TargetID: target.ID,
				Value:    value,
			}
			if err := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "swiper_id"}, {Name: "target_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
			}).Create(&swipe).Error; err != nil {
				return fmt.Errorf("failed to seed swipe: %w", err)
			}

			if mutual {
				userA, userB := CanonicalPair(swiper.ID, target.ID)
				match := Match{ID: uuid.NewString(), UserAID: userA, UserBID: userB, IsActive: true}
				db.Clauses(clause.OnConflict{
					Columns:   []clause.Column{{Name: "user_a_id"}, {Name: "user_b_id"}},
					DoNothing: true,
				}).Create(&match)
			}

			counter++
		}
	}

	return nil
}
