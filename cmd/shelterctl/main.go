// Command shelterctl manages the shelter catalog, adopter accounts, and the
// adoption queue from the command line. Storage backend selection follows the
// SHELTERCORE_* environment variables.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"

	"sheltercore/internal/blob"
	"sheltercore/internal/core"
	"sheltercore/pkg/domain"
)

var exitFunc = os.Exit

func main() {
	exitFunc(run(os.Args[1:], os.Stdout, os.Stderr))
}

const usageText = `Usage: shelterctl <command> [flags]

Commands:
  add-animal   register a new animal in the catalog
  list         print the animal catalog
  remove       delete an animal and its pending requests
  set-photo    upload or reference a photo for an animal
  register     create an adopter account
  request      file an adoption request
  decide       accept or reject a pending request
  pending      print the pending adoption queue
  adoptions    print the adoption ledger
  status       show an animal's state for one adopter
`

type serviceOpener func() (*core.Service, func() error, error)

func openService() (*core.Service, func() error, error) {
	store, err := core.OpenPersistentStore(core.DefaultRulesEngine())
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	photos, err := blob.Open(context.Background())
	if err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("open photo store: %w", err)
	}
	svc := core.NewService(store,
		core.WithLogger(core.NewSlogLogger(nil)),
		core.WithOperatorCredential(core.OperatorFromEnv()),
		core.WithPhotoStore(photos),
	)
	return svc, store.Close, nil
}

var openServiceFunc serviceOpener = openService

func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return 2
	}
	command, rest := args[0], args[1:]

	svc, closeStore, err := openServiceFunc()
	if err != nil {
		fmt.Fprintf(stderr, "shelterctl: %v\n", err)
		return 1
	}
	defer func() {
		if cerr := closeStore(); cerr != nil {
			fmt.Fprintf(stderr, "shelterctl: close store: %v\n", cerr)
		}
	}()

	ctx := context.Background()
	switch command {
	case "add-animal":
		err = cmdAddAnimal(ctx, svc, rest, stdout)
	case "list":
		err = cmdList(ctx, svc, stdout)
	case "remove":
		err = cmdRemove(ctx, svc, rest, stdout)
	case "set-photo":
		err = cmdSetPhoto(ctx, svc, rest, stdout)
	case "register":
		err = cmdRegister(ctx, svc, rest, stdout)
	case "request":
		err = cmdRequest(ctx, svc, rest, stdout)
	case "decide":
		err = cmdDecide(ctx, svc, rest, stdout)
	case "pending":
		err = cmdPending(ctx, svc, stdout)
	case "adoptions":
		err = cmdAdoptions(ctx, svc, rest, stdout)
	case "status":
		err = cmdStatus(ctx, svc, rest, stdout)
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return 0
	default:
		fmt.Fprintf(stderr, "shelterctl: unknown command %q\n", command)
		fmt.Fprint(stderr, usageText)
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "shelterctl: %v\n", err)
		return 1
	}
	return 0
}

func cmdAddAnimal(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("add-animal", flag.ContinueOnError)
	name := fs.String("name", "", "animal name")
	species := fs.String("species", "", "species label")
	age := fs.Int("age", 0, "age in years")
	description := fs.String("description", "", "free-form description")
	if err := fs.Parse(args); err != nil {
		return err
	}
	animal, _, err := svc.AddAnimal(ctx, core.AnimalInput{
		Name:        *name,
		Species:     *species,
		Age:         *age,
		Description: *description,
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "added animal %d (%s)\n", animal.ID, animal.Name)
	return nil
}

func cmdList(ctx context.Context, svc *core.Service, stdout io.Writer) error {
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSPECIES\tAGE\tDESCRIPTION")
	for _, animal := range svc.ListAnimals(ctx) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", animal.ID, animal.Name, animal.Species, animal.Age, animal.Description)
	}
	return w.Flush()
}

func cmdRemove(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("remove", flag.ContinueOnError)
	id := fs.Int64("id", 0, "animal identifier")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if _, err := svc.RemoveAnimal(ctx, *id); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "removed animal %d\n", *id)
	return nil
}

func cmdSetPhoto(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("set-photo", flag.ContinueOnError)
	id := fs.Int64("animal", 0, "animal identifier")
	ref := fs.String("ref", "", "external photo reference to record")
	file := fs.String("file", "", "local photo file to upload")
	if err := fs.Parse(args); err != nil {
		return err
	}
	switch {
	case *file != "":
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		contentType := mime.TypeByExtension(filepath.Ext(*file))
		animal, info, err := svc.AttachAnimalPhoto(ctx, *id, filepath.Base(*file), contentType, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "photo %s attached to animal %d\n", info.Key, animal.ID)
	case *ref != "":
		animal, _, err := svc.SetAnimalPhoto(ctx, *id, *ref)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "photo reference recorded for animal %d\n", animal.ID)
	default:
		return fmt.Errorf("one of -file or -ref is required")
	}
	return nil
}

func cmdRegister(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	username := fs.String("username", "", "account name")
	email := fs.String("email", "", "contact email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	user, _, err := svc.RegisterUser(ctx, *username, *email, *password)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "registered user %s\n", user.Username)
	return nil
}

func cmdRequest(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("request", flag.ContinueOnError)
	id := fs.Int64("animal", 0, "animal identifier")
	username := fs.String("username", "", "adopter account name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	request, _, err := svc.RequestAdoption(ctx, *id, *username)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "request filed for %s by %s\n", request.AnimalName, request.Username)
	return nil
}

func cmdDecide(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("decide", flag.ContinueOnError)
	id := fs.Int64("animal", 0, "animal identifier")
	username := fs.String("username", "", "adopter account name")
	decision := fs.String("decision", "", "accept or reject")
	opUser := fs.String("operator", "", "operator username")
	opPass := fs.String("operator-pass", "", "operator password")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !svc.ValidateOperator(*opUser, *opPass) {
		return domain.ErrInvalidCredentials
	}
	if _, err := svc.DecideRequest(ctx, *id, *username, domain.Decision(*decision)); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "request %s %sed\n", domain.RequestKey(*id, *username), *decision)
	return nil
}

func cmdPending(ctx context.Context, svc *core.Service, stdout io.Writer) error {
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ANIMAL\tNAME\tUSERNAME\tEMAIL")
	for _, request := range svc.ListPendingRequests(ctx) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", request.AnimalID, request.AnimalName, request.Username, request.Email)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%d pending\n", svc.CountPendingRequests(ctx))
	return nil
}

func cmdAdoptions(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("adoptions", flag.ContinueOnError)
	username := fs.String("username", "", "limit to one adopter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	if *username != "" {
		fmt.Fprintln(w, "ANIMAL\tNAME")
		for _, summary := range svc.ListAdoptionsFor(ctx, *username) {
			fmt.Fprintf(w, "%d\t%s\n", summary.AnimalID, summary.AnimalName)
		}
		return w.Flush()
	}
	fmt.Fprintln(w, "ANIMAL\tNAME\tADOPTER\tEMAIL")
	for _, adoption := range svc.ListAdoptions(ctx) {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", adoption.AnimalID, adoption.AnimalName, adoption.AdopterUsername, adoption.AdopterEmail)
	}
	return w.Flush()
}

func cmdStatus(ctx context.Context, svc *core.Service, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	id := fs.Int64("animal", 0, "animal identifier")
	username := fs.String("username", "", "adopter account name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	status, err := svc.AnimalStatus(ctx, *id, *username)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "animal %s is %s\n", strconv.FormatInt(*id, 10), status)
	return nil
}
