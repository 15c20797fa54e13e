// Command replay feeds a file of recorded raw frames through the protocol
// codec and Update Interpreter without opening a socket, adapted from the
// teacher's cmd/seeder: a local-only tool, guarded the same way
// (cfg.Env != "local" refuses to run), standing in for a database fixture
// seeder with a frame-replay harness for this engine's actual unit of
// work. Each line of the input file is one raw buffer exactly as the
// reader loop would have received it from ReadMessage.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	_ "github.com/joho/godotenv/autoload"

	"github.com/nvkrylov/tvchart-session/internal/config"
	"github.com/nvkrylov/tvchart-session/internal/domain"
	"github.com/nvkrylov/tvchart-session/internal/protocol"
	"github.com/nvkrylov/tvchart-session/internal/session"
)

func main() {
	path := flag.String("file", "", "path to a file of raw ~m~ framed lines to replay")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	if cfg.Env != "local" {
		log.Fatal("replay allowed only in local environment")
	}
	if *path == "" {
		log.Fatal("-file is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("Failed to open %s: %v", *path, err)
	}
	defer f.Close()

	store := session.NewStore()
	interpreter := session.NewInterpreter(store)
	dispatcher := session.NewDispatcher(&replayStudyLookup{})

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if line == "" {
			continue
		}
		for _, chunk := range protocol.Decode(line) {
			switch chunk.Kind {
			case protocol.KindHeartbeat:
				fmt.Printf("line %d: heartbeat %s\n", lineNo, chunk.Heartbeat)
			case protocol.KindMessage:
				route := protocol.Classify(chunk.Envelope)
				switch route.Class {
				case protocol.ClassDataUpdate:
					if route.Data == nil {
						continue
					}
					delta := interpreter.Apply(route.Data)
					event, ok := dispatcher.BuildEvent(delta, store.Snapshot())
					if !ok {
						continue
					}
					printEvent(lineNo, event)
				case protocol.ClassCriticalError:
					fmt.Printf("line %d: critical_error\n", lineNo)
				case protocol.ClassStudyError:
					fmt.Printf("line %d: study_error study_id=%s reason=%s\n", lineNo, route.StudyID, route.Reason)
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("Error reading %s: %v", *path, err)
	}
}

func printEvent(lineNo int, event domain.UpdateEvent) {
	encoded, err := json.Marshal(event)
	if err != nil {
		fmt.Printf("line %d: event encode error: %v\n", lineNo, err)
		return
	}
	fmt.Printf("line %d: %s\n", lineNo, encoded)
}

// replayStudyLookup never resolves a study, so every indicator row in a
// replayed file is printed unmapped. Good enough for inspecting raw
// protocol traces without pulling in a live metadata fetch.
type replayStudyLookup struct{}

func (replayStudyLookup) LoadedStudy(studyID string) (domain.StudyMetadata, bool) {
	return domain.StudyMetadata{}, false
}

var _ session.StudyLookup = replayStudyLookup{}
