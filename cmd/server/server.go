package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"strings"
	"sync"

	"github.com/avendley/schemavc"
	"github.com/avendley/schemavc/core"
	"github.com/avendley/schemavc/engine"
	"github.com/avendley/schemavc/track"
)

// Server is a TCP server exposing the schema version-control engine.
// Clients send one JSON request per line and receive one JSON response
// per line.
type Server struct {
	listener   net.Listener
	instance   *schemavc.Instance
	identity   core.Identity
	authConfig *AuthConfig
	done       chan struct{}
	wg         sync.WaitGroup
}

// NewServer creates a server over the given instance. identity is the
// actor used for unauthenticated connections.
func NewServer(instance *schemavc.Instance, identity core.Identity, authConfig *AuthConfig) *Server {
	return &Server{
		instance:   instance,
		identity:   identity,
		authConfig: authConfig,
		done:       make(chan struct{}),
	}
}

// Start begins listening for connections on the specified address.
func (s *Server) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	s.listener = listener

	log.Printf("Schema server listening on %s", addr)

	go s.acceptLoop()
	return nil
}

// Stop gracefully shuts down the server.
func (s *Server) Stop() error {
	close(s.done)
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	return nil
}

// Addr returns the server's listening address.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.done:
				return
			default:
				log.Printf("Accept error: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.wg.Done()
	defer conn.Close()

	log.Printf("Client connected: %s", conn.RemoteAddr())

	state := &ConnectionState{}
	eng := s.instance.Engine(s.identity)

	reader := bufio.NewReader(conn)

	for {
		select {
		case <-s.done:
			return
		default:
		}

		line, err := reader.ReadString('\n')
		if err != nil {
			if err != io.EOF {
				log.Printf("Read error from %s: %v", conn.RemoteAddr(), err)
			}
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if lower := strings.ToLower(line); lower == "quit" || lower == "exit" {
			log.Printf("Client disconnected: %s", conn.RemoteAddr())
			return
		}

		var response Response
		if strings.HasPrefix(strings.ToUpper(line), "AUTH ") {
			response = s.handleAuth(line, state)
			if state.IsAuthenticated() {
				eng = s.instance.Engine(*state.Identity())
			}
		} else if s.authConfig != nil && s.authConfig.Enabled && !state.IsAuthenticated() {
			response = Response{Success: false, Error: "authentication required"}
		} else {
			response = s.execute(eng, line)
		}

		data, err := EncodeResponse(response)
		if err != nil {
			log.Printf("Failed to encode response: %v", err)
			continue
		}

		if _, err := conn.Write(data); err != nil {
			log.Printf("Write error to %s: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func (s *Server) execute(eng *engine.Engine, line string) Response {
	request, err := DecodeRequest([]byte(line))
	if err != nil {
		return Response{Success: false, Error: fmt.Sprintf("invalid request: %v", err)}
	}

	switch request.Command {
	case "apply":
		return s.handleApply(eng, request)

	case "commit":
		commit, err := eng.CommitSnapshot(request.Branch, request.Message)
		if err != nil {
			return failure("commit", err)
		}
		return success("commit", CommitResponse{Commit: commit.String()})

	case "diff":
		changes, err := eng.Diff(request.From, request.To)
		if err != nil {
			return failure("diff", err)
		}
		return success("diff", changes)

	case "merge":
		result, err := eng.Merge(request.Ours, request.Theirs, request.Message)
		if err != nil {
			return failure("merge", err)
		}
		return success("merge", result)

	case "migrate":
		forward, backward, err := eng.GenerateMigration(request.From, request.To)
		if err != nil {
			return failure("migrate", err)
		}
		return success("migrate", MigrateResponse{
			Forward:  forward.Render(),
			Backward: backward.Render(),
		})

	case "history":
		entries, err := eng.History(requestRef(request))
		if err != nil {
			return failure("history", err)
		}
		return success("history", entries)

	case "object":
		object, err := eng.Object(requestRef(request))
		if err != nil {
			return failure("object", err)
		}
		return success("object", object)

	case "impacted":
		return success("impacted", eng.ImpactedBy(requestRef(request)))

	case "branches":
		branches, err := eng.Branches()
		if err != nil {
			return failure("branches", err)
		}
		return success("branches", branches)

	case "branch":
		if err := eng.CreateBranch(request.Name, request.From); err != nil {
			return failure("branch", err)
		}
		return Response{Success: true, Type: "branch"}

	case "delete-branch":
		if err := eng.DeleteBranch(request.Name); err != nil {
			return failure("branch", err)
		}
		return Response{Success: true, Type: "branch"}

	case "tag":
		if err := eng.Tag(request.Name, request.At); err != nil {
			return failure("tag", err)
		}
		return Response{Success: true, Type: "tag"}

	case "log":
		entries, err := eng.Log(request.Branch)
		if err != nil {
			return failure("log", err)
		}
		return success("log", entries)

	case "sync":
		if err := eng.SyncCatalog(context.Background()); err != nil {
			return failure("sync", err)
		}
		return Response{Success: true, Type: "sync"}

	default:
		return Response{Success: false, Error: fmt.Sprintf("unknown command: %q", request.Command)}
	}
}

func (s *Server) handleApply(eng *engine.Engine, request Request) Response {
	kind, err := parseChangeKind(request.Kind)
	if err != nil {
		return failure("apply", err)
	}

	ref := requestRef(request)
	if err := eng.Apply(track.ChangeEvent{
		Ref:        ref,
		Kind:       kind,
		Definition: request.Definition,
		NewName:    request.NewName,
	}); err != nil {
		return failure("apply", err)
	}

	if kind == core.RenameChange {
		ref.Name = request.NewName
	}
	object, err := eng.Object(ref)
	if err != nil {
		return failure("apply", err)
	}
	return success("apply", ApplyResponse{Version: object.Version.String()})
}

func requestRef(request Request) core.ObjectRef {
	return core.ObjectRef{
		Type:   core.ObjectType(strings.ToLower(request.Type)),
		Schema: request.Schema,
		Name:   request.Name,
	}
}

func parseChangeKind(kind string) (core.ChangeKind, error) {
	switch core.ChangeKind(strings.ToUpper(kind)) {
	case core.CreateChange:
		return core.CreateChange, nil
	case core.AlterChange:
		return core.AlterChange, nil
	case core.DropChange:
		return core.DropChange, nil
	case core.RenameChange:
		return core.RenameChange, nil
	case core.CommentChange:
		return core.CommentChange, nil
	default:
		return "", fmt.Errorf("unknown change kind: %q", kind)
	}
}

func success(responseType string, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return Response{Success: false, Type: responseType, Error: err.Error()}
	}
	return Response{Success: true, Type: responseType, Result: data}
}

func failure(responseType string, err error) Response {
	return Response{Success: false, Type: responseType, Error: err.Error()}
}
