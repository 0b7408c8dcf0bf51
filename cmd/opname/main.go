// Command opname is the terminal client for stock-taking. It scans or
// searches items, records physical counts and raises notifications
// when other operators close their sessions.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"inventory-service/internal/model"
	"inventory-service/internal/notify"
	"inventory-service/internal/opname"
	"inventory-service/pkg/apiclient"
	"inventory-service/pkg/config"
	"inventory-service/pkg/logger"

	"go.uber.org/zap"
)

func main() {
	var (
		server   = flag.String("server", "http://localhost:8080", "inventory service address")
		email    = flag.String("email", "", "login email")
		password = flag.String("password", "", "login password")
		rack     = flag.String("rack", "", "rack number for this session")
		user     = flag.String("user", "", "operator name")
		division = flag.String("division", "", "division name")
	)
	flag.Parse()

	if *email == "" || *password == "" {
		fmt.Fprintln(os.Stderr, "usage: opname -server URL -email EMAIL -password PASSWORD [-rack RACK -user NAME -division DIV]")
		os.Exit(2)
	}

	appConfig, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}
	logger.InitLogger(appConfig)
	log := logger.GetLogger()
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := apiclient.New(*server, *email, *password, log)
	if err := client.Login(ctx); err != nil {
		log.Fatal("Login failed", zap.Error(err))
	}

	sessions := opname.NewSessionStore(appConfig.Opname.SessionFile)
	wf := opname.NewWorkflow(opname.Config{
		DebounceWindow: appConfig.Opname.DebounceWindow,
		ScanCooldown:   appConfig.Opname.ScanCooldown,
	}, client, client, client, sessions, log)

	if err := wf.Resume(); err != nil {
		log.Fatal("Failed to resume session", zap.Error(err))
	}
	if !wf.Session().Active {
		s := opname.Session{RackNo: *rack, UserName: *user, Division: *division}
		if err := wf.StartSession(s); err != nil {
			log.Fatal("Failed to start session", zap.Error(err))
		}
	} else {
		fmt.Printf("Resuming session: rack %s, %s (%s)\n",
			wf.Session().RackNo, wf.Session().UserName, wf.Session().Division)
	}

	if err := wf.Reload(ctx); err != nil {
		log.Fatal("Failed to load catalog", zap.Error(err))
	}

	poller := notify.New(notify.Config{
		Interval:     appConfig.Notify.PollInterval,
		MaxVisible:   appConfig.Notify.MaxVisible,
		ActivityType: model.ActivityTypeSessionClosed,
	}, client, log, nil, func(n notify.Notification) {
		fmt.Printf("\n*** %s\n> ", n.Message)
	})
	go poller.Run(ctx)

	fmt.Println("Scan a barcode or type a search. Commands: :edit, :close, :cancel, :quit")
	scanner := bufio.NewScanner(os.Stdin)
	var pendingEdit *model.StockOpname
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case ":quit":
			return
		case ":cancel":
			wf.Cancel()
			continue
		case ":edit":
			if pendingEdit == nil {
				fmt.Println("Nothing to correct; scan a counted item first.")
				continue
			}
			wf.EditRecord(*pendingEdit)
			fmt.Printf("%s (counted %d): enter corrected physical quantity\n",
				pendingEdit.NmBrg, pendingEdit.PhysicalQty)
			pendingEdit = nil
			continue
		case ":close":
			if err := wf.CloseSession(ctx); err != nil {
				fmt.Println("Close failed:", err)
			} else {
				fmt.Println("Session closed.")
				return
			}
			continue
		}

		if wf.State() == opname.StateItemSelected {
			qty, err := strconv.Atoi(line)
			if err != nil {
				fmt.Println("Enter the physical quantity as a number, or :cancel")
				continue
			}
			saved, err := wf.Confirm(ctx, qty)
			if err != nil {
				fmt.Println("Save failed:", err)
				continue
			}
			fmt.Printf("Saved %s: system %d, physical %d, difference %d\n",
				saved.NmBrg, saved.SystemQty, saved.PhysicalQty, saved.Difference)
			continue
		}

		if wf.State() == opname.StateBrowsing {
			idx, err := strconv.Atoi(line)
			candidates := wf.Candidates()
			if err != nil || idx < 1 || idx > len(candidates) {
				fmt.Println("Pick a number from the list, or :cancel")
				continue
			}
			sel := wf.Select(candidates[idx-1])
			if sel.Outcome == opname.ScanAlreadyRecorded {
				pendingEdit = sel.Existing
			}
			printResult(sel)
			continue
		}

		result, err := wf.Scan(line)
		if err != nil {
			fmt.Println("Scan failed:", err)
			continue
		}
		if result.Outcome == opname.ScanAlreadyRecorded {
			pendingEdit = result.Existing
		}
		printResult(result)
	}
}

func printResult(r opname.ScanResult) {
	switch r.Outcome {
	case opname.ScanSelected:
		fmt.Printf("%s (system qty %d): enter physical quantity\n", r.Item.NmBrg, r.Item.Qty)
	case opname.ScanAmbiguous:
		fmt.Println("Multiple matches:")
		for i, c := range r.Candidates {
			fmt.Printf("  %d. %s\n", i+1, c.NmBrg)
		}
	case opname.ScanNotFound:
		fmt.Println("No item matched.")
	case opname.ScanAlreadyRecorded:
		fmt.Printf("%s is already counted on this rack (physical %d). Type :edit to correct it.\n",
			r.Item.NmBrg, r.Existing.PhysicalQty)
	case opname.ScanDebounced:
		// Repeated frame, stay quiet
	}
}
