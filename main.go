package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mammutbb/mammut/activitypub"
	"github.com/mammutbb/mammut/db"
	"github.com/mammutbb/mammut/domain"
	"github.com/mammutbb/mammut/util"
	"github.com/mammutbb/mammut/web"
)

const version = "0.1.0"

func main() {
	showVersion := flag.Bool("v", false, "print version and exit")
	dbPath := flag.String("db", util.Name+".db", "path to the sqlite database")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s v%s\n", util.Name, version)
		os.Exit(0)
	}

	conf, err := util.ReadConf()
	if err != nil {
		log.Fatalf("could not read config: %v", err)
	}
	util.SetupLogging(conf)

	database, err := db.Connect(*dbPath)
	if err != nil {
		log.Fatalf("could not open database: %v", err)
	}
	defer database.Close()

	if err := seedFallbackCategory(database, conf); err != nil {
		log.Fatalf("could not seed fallback category: %v", err)
	}

	resolver := activitypub.NewResolver(database, conf)
	service := activitypub.NewService(database, resolver, conf)
	handlers := web.NewHandlers(database, service, conf)
	router := web.NewRouter(handlers)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if conf.Conf.WithAp {
		deliverer := activitypub.NewDeliverer(database, conf)
		go deliverer.Run(ctx, 30*time.Second)
	}

	addr := fmt.Sprintf("%s:%d", conf.Conf.Host, conf.Conf.HttpPort)
	log.Printf("%s v%s serving %s on %s", util.Name, version, conf.Conf.SslDomain, addr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- router.Run(addr)
	}()

	select {
	case err := <-errCh:
		log.Fatalf("http server stopped: %v", err)
	case <-ctx.Done():
		log.Printf("shutting down")
	}
}

// seedFallbackCategory makes sure the unlisted category exists, so
// content that arrives without a resolvable audience always has a home.
func seedFallbackCategory(database *db.DB, conf *util.AppConfig) error {
	cid := conf.Conf.FallbackCategory
	err, _ := database.ReadCategoryById(cid)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	keys := util.GeneratePemKeypair()
	return database.CreateCategory(&domain.Category{
		CID:           cid,
		Name:          "Unlisted",
		Slug:          "unlisted",
		Description:   "content without a resolvable audience",
		WebPublicKey:  keys.Public,
		WebPrivateKey: keys.Private,
		CreatedAt:     time.Now(),
	})
}
