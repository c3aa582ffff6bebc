// Command main runs the demo data seeder for mtum.
package main

import (
	"context"
	"flag"
	"log"

	"mtum/internal/config"
	"mtum/internal/database"
	"mtum/internal/seed"
)

func main() {
	// Parse command line flags
	numUsers := flag.Int("users", 20, "Number of users to create")
	postsPerUser := flag.Int("posts", 8, "Posts per user")
	follows := flag.Int("follows", 5, "Follows per user")
	likes := flag.Int("likes", 10, "Likes per user")
	reblogs := flag.Int("reblogs", 3, "Reblogs per user")
	days := flag.Int("days", 90, "Spread post dates over this many days")
	randSeed := flag.Int64("seed", 0, "Random seed, 0 for a random run")
	fast := flag.Bool("fast", false, "Skip bcrypt; demo accounts will not be able to log in")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("mtum demo seeder")
	log.Printf("Target: %d users, %d posts each, clean=%v\n", *numUsers, *postsPerUser, *shouldClean)

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	s, err := seed.NewSeeder(db, seed.Options{
		Users:          *numUsers,
		PostsPerUser:   *postsPerUser,
		FollowsPerUser: *follows,
		LikesPerUser:   *likes,
		ReblogsPerUser: *reblogs,
		MaxDays:        *days,
		SkipBcrypt:     *fast,
		RandSeed:       *randSeed,
	})
	if err != nil {
		log.Fatalf("Failed to create seeder: %v", err)
	}

	ctx := context.Background()
	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
	}

	res, err := s.Run(ctx)
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Done: %d users, %d posts, %d follows, %d likes, %d reblogs\n",
		res.Users, res.Posts, res.Follows, res.Likes, res.Reblogs)
	if !*fast {
		log.Printf("All demo users have the password: %s\n", seed.DemoPassword)
	}
}
