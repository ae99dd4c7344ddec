package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/IBM/sarama"

	"github.com/paddock-market/internal/domain"
)

// loadImports reads a JSON file holding either one points import or a list of them
func loadImports(path string) ([]domain.PointsImport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading points file: %w", err)
	}
	data = bytes.TrimSpace(data)

	var imports []domain.PointsImport
	if len(data) > 0 && data[0] == '[' {
		err = json.Unmarshal(data, &imports)
	} else {
		var single domain.PointsImport
		err = json.Unmarshal(data, &single)
		imports = append(imports, single)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing points file: %w", err)
	}

	for i := range imports {
		sport, err := domain.ParseSport(string(imports[i].Sport))
		if err != nil {
			return nil, fmt.Errorf("import %d: %w", i, err)
		}
		imports[i].Sport = sport
		if err := imports[i].Validate(); err != nil {
			return nil, fmt.Errorf("import %d: %w: %v", i, domain.ErrInvalidRequest, err)
		}
	}
	return imports, nil
}

// messageKey keeps every import of a race on the same partition
func messageKey(imp domain.PointsImport) string {
	return fmt.Sprintf("%s:%d", imp.Sport, imp.RaceID)
}

func main() {
	// Command line flags
	brokers := flag.String("brokers", "localhost:9094", "Kafka brokers (comma-separated)")
	topic := flag.String("topic", "rider-points", "Kafka topic")
	file := flag.String("file", "", "JSON file with one points import or a list of them")
	dryRun := flag.Bool("dry-run", false, "Validate the file without publishing")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	imports, err := loadImports(*file)
	if err != nil {
		log.Fatalf("Invalid points file: %v", err)
	}

	brokerList := strings.Split(*brokers, ",")

	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println("  Rider Points Producer")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Printf("  Brokers:  %s\n", *brokers)
	fmt.Printf("  Topic:    %s\n", *topic)
	fmt.Printf("  File:     %s\n", *file)
	fmt.Printf("  Imports:  %d\n", len(imports))
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if *dryRun {
		for _, imp := range imports {
			fmt.Printf("  %s race %d: %d rows\n", imp.Sport, imp.RaceID, len(imp.Points))
		}
		fmt.Println("\nDry run: nothing published")
		return
	}

	// Configure Sarama producer
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	// Create producer
	producer, err := sarama.NewAsyncProducer(brokerList, config)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}

	// Handle producer errors and successes
	var successCount, errorCount int64
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for range producer.Successes() {
			atomic.AddInt64(&successCount, 1)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for err := range producer.Errors() {
			atomic.AddInt64(&errorCount, 1)
			log.Printf("Producer error: %v", err)
		}
	}()

	for _, imp := range imports {
		data, err := json.Marshal(imp)
		if err != nil {
			log.Printf("Failed to marshal import for race %d: %v", imp.RaceID, err)
			continue
		}
		producer.Input() <- &sarama.ProducerMessage{
			Topic: *topic,
			Key:   sarama.StringEncoder(messageKey(imp)),
			Value: sarama.ByteEncoder(data),
		}
	}

	producer.AsyncClose()
	wg.Wait()
	fmt.Printf("✓ Completed. Sent: %d, Errors: %d\n", atomic.LoadInt64(&successCount), atomic.LoadInt64(&errorCount))
	if atomic.LoadInt64(&errorCount) > 0 {
		os.Exit(1)
	}
}
