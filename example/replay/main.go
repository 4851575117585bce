package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/BenCrafterRED/colortracker/chart"
	"github.com/BenCrafterRED/colortracker/kinematics"
	"github.com/BenCrafterRED/colortracker/store"
	"github.com/google/uuid"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// listSessions prints the stored sessions, most recent first
func listSessions(ctx context.Context, db *store.DB) error {

	sessions, err := db.ListSessions(ctx)

	if err != nil {
		return err
	}

	if len(sessions) == 0 {
		log.Println("No sessions stored")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSOURCE\tSAMPLES\tDETECTIONS\tDURATION")

	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n", s.ID,
			s.StartedAt.Local().Format(time.DateTime), s.Source, s.Samples,
			s.Detections, s.Duration.Round(time.Millisecond))
	}

	return tw.Flush()
}

// replay re-analyses a stored session and writes its charts
func replay(ctx context.Context, db *store.DB, id uuid.UUID, sigma float64,
	unit string, kinds []kinematics.Kind, output, html string) error {

	sess, err := db.LoadSession(ctx, id)

	if err != nil {
		return err
	}

	scale := sess.Scale

	if unit != "" {
		u, err := kinematics.ParseUnit(unit)

		if err != nil {
			return err
		}

		if scale, err = scale.To(u); err != nil {
			return err
		}
	}

	if sigma < 0 {
		sigma = sess.Sigma
	}

	series, err := kinematics.Analyzer{Sigma: sigma}.Analyze(sess.Samples, scale)

	if err != nil {
		return fmt.Errorf("error analysing session %s: %w", id, err)
	}

	log.Printf("Session %s recorded from %s at %s", id, sess.Source,
		sess.StartedAt.Local().Format(time.DateTime))
	log.Printf("Hue: %d, Threshold: %d, ROI: %v, Sigma: %g", sess.Hue,
		sess.Threshold, sess.ROI, sigma)
	log.Println(series.Summary())

	if err := chart.SaveFigure(output, series, kinds, chart.DefaultOptions()); err != nil {
		return err
	}

	log.Printf("Figure written to %s", output)

	if html == "" {
		return nil
	}

	f, err := os.Create(html)

	if err != nil {
		return fmt.Errorf("error creating chart file: %w", err)
	}

	defer f.Close()

	if err := chart.WriteHTML(f, series, kinds); err != nil {
		return err
	}

	log.Printf("Chart written to %s", html)

	return f.Close()
}

func main() {
	// disable logging timestamps
	log.SetFlags(0)

	// read in cli flags
	dbFile := flag.String("db", "sessions.db", "SQLite database sessions were stored in")
	sessionID := flag.String("id", "", "Session to replay, list sessions when empty")
	sigma := flag.Float64("sigma", -1, "Gaussian smoothing sigma, negative to use the recorded value")
	unit := flag.String("unit", "", "Length unit to convert to [m|dm|cm|mm], empty for the recorded unit")
	plots := flag.String("p", "velocity,acceleration", "Comma delimited list of series to plot")
	output := flag.String("o", chart.DefaultFigure, "Output PNG figure")
	html := flag.String("html", "", "Optional interactive HTML chart output")
	remove := flag.Bool("delete", false, "Delete the session instead of replaying it")

	flag.Parse()

	db, err := store.Open(*dbFile)

	if err != nil {
		log.Fatalf("Error opening session store: %v", err)
	}

	defer db.Close()

	ctx := context.Background()

	if *sessionID == "" {
		if err := listSessions(ctx, db); err != nil {
			log.Fatalf("Error listing sessions: %v", err)
		}
		return
	}

	id, err := uuid.Parse(*sessionID)

	if err != nil {
		log.Fatalf("Invalid session ID: %v", err)
	}

	if *remove {
		if err := db.DeleteSession(ctx, id); err != nil {
			log.Fatalf("Error deleting session: %v", err)
		}
		log.Printf("Session %s deleted", id)
		return
	}

	kinds, err := kinematics.ParseKinds(strings.Split(*plots, ","))

	if err != nil {
		log.Fatalf("Invalid plots: %v", err)
	}

	if err := replay(ctx, db, id, *sigma, *unit, kinds, *output, *html); err != nil {
		log.Fatalf("Error replaying session: %v", err)
	}
}
