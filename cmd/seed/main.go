package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/book-market-backend/internal/config"
	"github.com/shinyyama/book-market-backend/internal/db"
	"github.com/shinyyama/book-market-backend/internal/model"
	"github.com/shinyyama/book-market-backend/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const welcomePoints = 200

type seedListing struct {
	SellerUID string
	Title     string
	Author    string
	Price     string
	Kind      model.ListingKind
}

var seedCustomers = []model.Customer{
	{UID: "seed-aoi", DisplayName: "Aoi"},
	{UID: "seed-haru", DisplayName: "Haru"},
	{UID: "seed-mei", DisplayName: "Mei"},
}

// Tables cleared on FORCE_SEED, children first.
var seedTables = []string{
	"returns", "points_ledger", "transactions", "negotiation_requests",
	"favorites", "notifications", "conversations", "listings", "customers",
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	gdb, err := db.Connect(cfg)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	canSeed, err := shouldSeed(ctx, gdb)
	if err != nil {
		return err
	}
	if !canSeed {
		log.Printf("listings already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}

	items := buildSeedListings()
	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		points := repository.NewPointsRepository(tx)
		listings := repository.NewListingRepository(tx)
		customers := repository.NewCustomerRepository(tx)
		for _, table := range seedTables {
			if err := tx.Exec("DELETE FROM " + table).Error; err != nil {
				return fmt.Errorf("clear %s: %w", table, err)
			}
		}
		for i := range seedCustomers {
			c := seedCustomers[i]
			if err := customers.Create(ctx, &c); err != nil {
				return fmt.Errorf("insert customer %q: %w", c.UID, err)
			}
			if _, err := points.Grant(ctx, c.UID, welcomePoints, nil); err != nil {
				return fmt.Errorf("grant welcome points %q: %w", c.UID, err)
			}
		}
		for idx, it := range items {
			l, err := toListing(it, picsumURL(string(it.Kind), idx+1, 1))
			if err != nil {
				return err
			}
			if err := listings.Create(ctx, l); err != nil {
				return fmt.Errorf("insert listing %q: %w", it.Title, err)
			}
			// every other listing is favorited by a customer who does not own it
			if idx%2 == 0 {
				fan := seedCustomers[(idx+1)%len(seedCustomers)].UID
				if fan == l.SellerUID {
					continue
				}
				if err := tx.Create(&model.Favorite{ListingID: l.ID, CustomerUID: fan}).Error; err != nil {
					return fmt.Errorf("insert favorite: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("seeded %d customers and %d listings", len(seedCustomers), len(items))
	return nil
}

func buildSeedListings() []seedListing {
	type shelf struct {
		Kind   model.ListingKind
		Price  string
		Titles [][2]string
	}
	shelves := []shelf{
		{Kind: model.ListingKindSale, Price: "1200", Titles: [][2]string{
			{"ノルウェイの森", "村上春樹"}, {"コンビニ人間", "村田沙耶香"}, {"火花", "又吉直樹"}, {"博士の愛した数式", "小川洋子"},
		}},
		{Kind: model.ListingKindRental, Price: "300", Titles: [][2]string{
			{"プログラミング言語Go", "Alan A. A. Donovan"}, {"データ指向アプリケーションデザイン", "Martin Kleppmann"}, {"リーダブルコード", "Dustin Boswell"},
		}},
		{Kind: model.ListingKindDonation, Price: "0", Titles: [][2]string{
			{"旅雑誌 バックナンバー", ""}, {"英単語ターゲット1900", ""}, {"絵本まとめ", ""},
		}},
	}

	var items []seedListing
	n := 0
	for _, s := range shelves {
		for i, t := range s.Titles {
			price := decimal.RequireFromString(s.Price)
			if s.Kind != model.ListingKindDonation {
				price = price.Add(decimal.NewFromInt(int64(i * 100)))
			}
			items = append(items, seedListing{
				SellerUID: seedCustomers[n%len(seedCustomers)].UID,
				Title:     t[0],
				Author:    t[1],
				Price:     price.String(),
				Kind:      s.Kind,
			})
			n++
		}
	}
	return items
}

func toListing(it seedListing, imageURL string) (*model.Listing, error) {
	price, err := decimal.NewFromString(it.Price)
	if err != nil {
		return nil, fmt.Errorf("price for %q: %w", it.Title, err)
	}
	imageURL = strings.TrimSpace(imageURL)
	return &model.Listing{
		SellerUID: it.SellerUID,
		Title:     strings.TrimSpace(it.Title),
		Author:    strings.TrimSpace(it.Author),
		Price:     price,
		Kind:      it.Kind,
		State:     model.ListingStateActive,
		ImageURL:  &imageURL,
	}, nil
}

func shouldSeed(ctx context.Context, gdb *gorm.DB) (bool, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Listing{}).Count(&cnt).Error; err != nil {
		return false, fmt.Errorf("count listings: %w", err)
	}
	if cnt == 0 {
		return true, nil
	}
	force := os.Getenv("FORCE_SEED")
	return strings.EqualFold(force, "true"), nil
}

func picsumURL(slug string, itemIndex int, k int) string {
	return fmt.Sprintf("https://picsum.photos/seed/%s-%d-%d/600/600", strings.ToLower(slug), itemIndex, k)
}
