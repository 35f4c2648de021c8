package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type InspectionResponse struct {
	Inspection struct {
		ID string `json:"ID"`
	} `json:"inspection"`
}

type ComponentsResponse struct {
	Components []struct {
		QRCode     string `json:"QRCode"`
		IsRequired bool   `json:"IsRequired"`
	} `json:"components"`
}

type WorkflowResult struct {
	Success  bool
	Latency  time.Duration
	ErrorMsg string
}

func main() {
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	duration := flag.Int("duration", 30, "Test duration in seconds")
	port := flag.String("port", "3001", "Node HTTP port")
	instructions := flag.String("instructions", "SI-001,SI-002,SI-003", "Comma-separated shipping instruction IDs to cycle")
	flag.Parse()

	instructionIDs := strings.Split(*instructions, ",")

	recordsDir := "./records"
	os.MkdirAll(recordsDir, 0755)

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join(recordsDir, fmt.Sprintf(
		"scanload_%s_w%d_d%ds.csv",
		timestamp, *workers, *duration,
	))

	fmt.Println("========================================")
	fmt.Println("   SCAN LOAD BENCHMARK")
	fmt.Println("========================================")
	fmt.Printf("Workers:      %d\n", *workers)
	fmt.Printf("Duration:     %ds\n", *duration)
	fmt.Printf("Node URL:     http://127.0.0.1:%s\n", *port)
	fmt.Printf("Instructions: %s\n", *instructions)
	fmt.Printf("Output:       %s\n", filename)
	fmt.Println("========================================")
	fmt.Println("")

	baseURL := fmt.Sprintf("http://127.0.0.1:%s", *port)

	stopChan := make(chan struct{})
	resultsChan := make(chan WorkflowResult, *workers*10)

	var totalReqs int64
	var successReqs int64
	var failedReqs int64
	var totalLatency int64
	var minLatency int64 = 1<<63 - 1
	var maxLatency int64 = 0

	var wg sync.WaitGroup

	fmt.Println("Starting workers...")
	for i := 0; i < *workers; i++ {
		wg.Add(1)
		instructionID := instructionIDs[i%len(instructionIDs)]
		go worker(i, baseURL, instructionID, stopChan, resultsChan, &wg)
	}

	var collectorWg sync.WaitGroup
	collectorWg.Add(1)
	go func() {
		defer collectorWg.Done()
		for result := range resultsChan {
			atomic.AddInt64(&totalReqs, 1)

			if result.Success {
				atomic.AddInt64(&successReqs, 1)
				latencyNs := result.Latency.Nanoseconds()
				atomic.AddInt64(&totalLatency, latencyNs)

				for {
					old := atomic.LoadInt64(&minLatency)
					if latencyNs >= old || atomic.CompareAndSwapInt64(&minLatency, old, latencyNs) {
						break
					}
				}

				for {
					old := atomic.LoadInt64(&maxLatency)
					if latencyNs <= old || atomic.CompareAndSwapInt64(&maxLatency, old, latencyNs) {
						break
					}
				}
			} else {
				atomic.AddInt64(&failedReqs, 1)
			}

			if totalReqs%10 == 0 {
				fmt.Printf("\rWorkflows: %d | Success: %d | Failed: %d",
					totalReqs, successReqs, failedReqs)
			}
		}
	}()

	startTime := time.Now()
	fmt.Printf("Running benchmark for %d seconds...\n", *duration)
	time.Sleep(time.Duration(*duration) * time.Second)

	close(stopChan)
	wg.Wait()
	close(resultsChan)
	collectorWg.Wait()

	elapsed := time.Since(startTime)

	tps := float64(totalReqs) / elapsed.Seconds()
	avgLatency := time.Duration(0)
	if successReqs > 0 {
		avgLatency = time.Duration(totalLatency / successReqs)
	}

	fmt.Println("\n\n========================================")
	fmt.Println("   BENCHMARK RESULTS")
	fmt.Println("========================================")
	fmt.Printf("Total Workflows:   %d\n", totalReqs)
	fmt.Printf("Successful:        %d (%.2f%%)\n", successReqs, float64(successReqs)/float64(totalReqs)*100)
	fmt.Printf("Failed:            %d (%.2f%%)\n", failedReqs, float64(failedReqs)/float64(totalReqs)*100)
	fmt.Printf("Duration:          %v\n", elapsed)
	fmt.Printf("Throughput (TPS):  %.2f\n", tps)
	fmt.Printf("Avg Latency:       %v\n", avgLatency)
	fmt.Printf("Min Latency:       %v\n", time.Duration(minLatency))
	fmt.Printf("Max Latency:       %v\n", time.Duration(maxLatency))
	fmt.Println("========================================")

	file, err := os.Create(filename)
	if err != nil {
		fmt.Printf("Error creating file: %v\n", err)
		return
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{
		"Workers", "Duration_s",
		"Total_Workflows", "Successful", "Failed",
		"TPS", "Avg_Latency_ms", "Min_Latency_ms", "Max_Latency_ms",
	})

	writer.Write([]string{
		fmt.Sprintf("%d", *workers),
		fmt.Sprintf("%d", *duration),
		fmt.Sprintf("%d", totalReqs),
		fmt.Sprintf("%d", successReqs),
		fmt.Sprintf("%d", failedReqs),
		fmt.Sprintf("%.2f", tps),
		fmt.Sprintf("%.2f", float64(avgLatency.Milliseconds())),
		fmt.Sprintf("%.2f", float64(time.Duration(minLatency).Milliseconds())),
		fmt.Sprintf("%.2f", float64(time.Duration(maxLatency).Milliseconds())),
	})

	fmt.Printf("\nResults saved to: %s\n", filename)
}

func worker(id int, baseURL, instructionID string, stopChan chan struct{}, resultsChan chan WorkflowResult, wg *sync.WaitGroup) {
	defer wg.Done()

	client := NewHTTPClient(baseURL)

	for {
		select {
		case <-stopChan:
			return
		default:
			start := time.Now()
			err := runWorkflow(client, instructionID)
			latency := time.Since(start)

			result := WorkflowResult{
				Success: err == nil,
				Latency: latency,
			}
			if err != nil {
				result.ErrorMsg = err.Error()
			}

			resultsChan <- result
		}
	}
}

// runWorkflow drives one inspection cycle: start, scan, complete. One
// required component is deliberately left unscanned so the completion
// fails, leaving stock untouched and the cycle repeatable indefinitely.
func runWorkflow(client *HTTPClient, instructionID string) error {
	// 1. Start inspection
	resp, err := client.POST("/qr-inspections", map[string]interface{}{
		"shipping_instruction_id": instructionID,
		"inspector_name":          "bench-worker",
	})
	if err != nil {
		return fmt.Errorf("start inspection: %v", err)
	}
	var inspResp InspectionResponse
	if err := UnmarshalData(resp, &inspResp); err != nil {
		return fmt.Errorf("start inspection unmarshal: %v", err)
	}
	inspectionID := inspResp.Inspection.ID

	// 2. Fetch the component registry
	resp, err = client.GET(fmt.Sprintf("/shipping-instructions/%s/components", instructionID))
	if err != nil {
		return fmt.Errorf("fetch components: %v", err)
	}
	var compResp ComponentsResponse
	if err := UnmarshalData(resp, &compResp); err != nil {
		return fmt.Errorf("fetch components unmarshal: %v", err)
	}

	required := make([]string, 0, len(compResp.Components))
	for _, c := range compResp.Components {
		if c.IsRequired {
			required = append(required, c.QRCode)
		}
	}
	if len(required) == 0 {
		return fmt.Errorf("instruction %s has no required components", instructionID)
	}

	// 3. Scan all required components except the last
	for _, code := range required[:len(required)-1] {
		endpoint := fmt.Sprintf("/qr-inspections/%s/scan", inspectionID)
		resp, err := client.POST(endpoint, map[string]interface{}{"qr_code": code})
		if err != nil {
			return fmt.Errorf("scan %s: %v", code, err)
		}
		resp.Body.Close()
	}

	// 4. Complete (derives a fail, non-destructive)
	endpoint := fmt.Sprintf("/qr-inspections/%s/complete", inspectionID)
	resp, err = client.PATCH(endpoint, map[string]interface{}{"notes": "benchmark cycle"})
	if err != nil {
		return fmt.Errorf("complete inspection: %v", err)
	}
	resp.Body.Close()

	return nil
}
