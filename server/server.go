package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	cmtlog "github.com/cometbft/cometbft/libs/log"
	nm "github.com/cometbft/cometbft/node"
	cmtrpc "github.com/cometbft/cometbft/rpc/client/local"
	"github.com/rs/cors"

	"github.com/shipcheck/shipcheck/repository"
	"github.com/shipcheck/shipcheck/srvreg"
)

// WebServer handles HTTP requests for the warehouse API
type WebServer struct {
	httpAddr          string
	server            *http.Server
	logger            cmtlog.Logger
	node              *nm.Node
	startTime         time.Time
	serviceRegistry   *srvreg.ServiceRegistry
	cometBftRpcClient *cmtrpc.Local
	repository        *repository.Repository
}

// APIResponse is the envelope for all API responses
type APIResponse struct {
	StatusCode int               `json:"-"`
	Headers    map[string]string `json:"-"`
	Data       interface{}       `json:"data"`
	Meta       ResponseMeta      `json:"meta"`
	NodeID     string            `json:"node_id"`
}

// ResponseMeta carries request bookkeeping alongside the payload
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// NewWebServer creates the warehouse API web server. The node may be nil
// when running without the audit ledger.
func NewWebServer(httpPort string, logger cmtlog.Logger, node *nm.Node, serviceRegistry *srvreg.ServiceRegistry, repository *repository.Repository) (*WebServer, error) {
	mux := http.NewServeMux()

	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})

	server := &WebServer{
		httpAddr: ":" + httpPort,
		server: &http.Server{
			Addr:    ":" + httpPort,
			Handler: corsMiddleware.Handler(mux),
		},
		logger:          logger,
		node:            node,
		startTime:       time.Now(),
		serviceRegistry: serviceRegistry,
		repository:      repository,
	}

	if node != nil {
		server.cometBftRpcClient = cmtrpc.New(node)
	}

	// Register routes
	mux.HandleFunc("/debug", server.handleDebug)
	mux.HandleFunc("/", server.handleAPI)

	return server, nil
}

// Handler exposes the configured HTTP handler for embedding and tests
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start starts the web server
func (ws *WebServer) Start() error {
	ws.logger.Info("Starting warehouse API server", "addr", ws.httpAddr)
	go func() {
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			ws.logger.Error("Web server error: ", "err", err)
		}
	}()
	return nil
}

// Shutdown gracefully shuts down the web server
func (ws *WebServer) Shutdown(ctx context.Context) error {
	ws.logger.Info("Shutting down web server")
	return ws.server.Shutdown(ctx)
}

// handleDebug provides node debugging information
func (ws *WebServer) handleDebug(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		JSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	debugInfo := map[string]interface{}{
		"service": "shipcheck",
		"uptime":  time.Since(ws.startTime).String(),
	}

	if ws.node == nil {
		debugInfo["audit_ledger"] = "disabled"
	} else {
		debugInfo["audit_ledger"] = "enabled"
		debugInfo["node_id"] = string(ws.node.NodeInfo().ID())
		debugInfo["rpc_address"] = ws.node.Config().RPC.ListenAddress

		status, err := ws.cometBftRpcClient.Status(context.Background())
		if err != nil {
			debugInfo["consensus_error"] = err.Error()
		} else {
			debugInfo["latest_block_height"] = status.SyncInfo.LatestBlockHeight
			debugInfo["latest_block_time"] = status.SyncInfo.LatestBlockTime
			debugInfo["catching_up"] = status.SyncInfo.CatchingUp
		}

		abciInfo, err := ws.cometBftRpcClient.ABCIInfo(context.Background())
		if err != nil {
			debugInfo["abci_error"] = err.Error()
		} else {
			debugInfo["last_block_height"] = abciInfo.Response.LastBlockHeight
			debugInfo["last_block_app_hash"] = fmt.Sprintf("%X", abciInfo.Response.LastBlockAppHash)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(debugInfo); err != nil {
		JSONError(w, "Error encoding response: "+err.Error(), http.StatusInternalServerError)
		return
	}
}

// handleAPI routes all API requests through the service registry
func (ws *WebServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	requestID, err := generateRequestID()
	if err != nil {
		JSONError(w, "Internal Server Error", http.StatusInternalServerError)
		ws.logger.Error("Failed to generate request ID", "err", err)
		return
	}

	request, err := srvreg.ConvertHttpRequest(r, requestID)
	if err != nil {
		JSONError(w, "Failed to convert request: "+err.Error(), http.StatusUnprocessableEntity)
		ws.logger.Error("Failed to convert HTTP request", "err", err)
		return
	}

	response, handlerErr := request.GenerateResponse(ws.serviceRegistry)
	if response == nil {
		JSONError(w, "Failed to generate response", http.StatusInternalServerError)
		ws.logger.Error("Failed to generate response", "err", handlerErr)
		return
	}

	var responseData interface{}
	json.Unmarshal([]byte(response.Body), &responseData)

	apiResponse := APIResponse{
		StatusCode: response.StatusCode,
		Headers:    response.Headers,
		Data:       responseData,
		Meta: ResponseMeta{
			RequestID: requestID,
			Timestamp: time.Now(),
		},
		NodeID: ws.nodeID(),
	}

	for key, value := range response.Headers {
		w.Header().Set(key, value)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.StatusCode)

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(apiResponse); err != nil {
		ws.logger.Error("Failed to encode API response", "err", err)
	}

	ws.logger.Info("API Request Processed",
		"path", request.Path,
		"method", request.Method,
		"status", response.StatusCode,
	)
}

func (ws *WebServer) nodeID() string {
	if ws.node == nil {
		return "standalone"
	}
	return string(ws.node.NodeInfo().ID())
}

// Helper functions

func generateRequestID() (string, error) {
	bytes := make([]byte, 16)
	_, err := rand.Read(bytes)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}

func JSONError(w http.ResponseWriter, message string, statusCode int) {
	errorResponse := struct {
		Error string `json:"error"`
	}{
		Error: message,
	}
	jsonBytes, err := json.Marshal(errorResponse)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(jsonBytes)
}
