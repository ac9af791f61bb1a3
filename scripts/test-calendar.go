package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pfrederiksen/hh-events/internal/calendar"
	"github.com/pfrederiksen/hh-events/internal/event"
)

func main() {
	day := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)

	// One fully known event and one with gaps, to check both renderings
	full := event.NewEvent("Warkings + Visions Of Atlantis", day, event.Clock{Hour: 18, Minute: 45})
	full.Venue = event.Str("Markthalle")
	full.Category = event.Str("Rock, Indie, Metal")
	full.Description = event.Str("Pirates & Kings Tour 2026; special guests: Wind Rose, Dragony")
	full.URL = event.Str("https://www.hamburg-tourism.de/konzert/warkings/")

	sparse := event.NewEvent("NDR Bigband: Weltmusik im Großen Saal der Elbphilharmonie mit einem sehr langen Titel", day, event.Clock{Hour: 20})

	icsContent := calendar.GenerateBulkICS([]event.Event{full, sparse}, "Hamburg events "+event.FormatDayFirst(day))

	// Write to file (owner read/write only for security)
	filename := "test-hh-events.ics"
	if err := os.WriteFile(filename, []byte(icsContent), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Generated calendar file: %s\n\n", filename)
	fmt.Println("Test it by:")
	fmt.Println("1. Open the .ics file with your calendar app (double-click)")
	fmt.Println("2. Or import it into Google Calendar, Apple Calendar, or Outlook")
	fmt.Println("3. Check that the first event starts at 18:45 Hamburg time")
	fmt.Println("\nFile contents preview:")
	fmt.Println("---")
	fmt.Println(icsContent)
}
