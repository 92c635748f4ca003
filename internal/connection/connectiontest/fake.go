// Package connectiontest provides in-memory implementations of the driver
// and tunnel boundaries for tests.
package connectiontest

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/peternagy/mongobrowse/internal/connection"
	"github.com/peternagy/mongobrowse/internal/tunnel"
	"github.com/peternagy/mongobrowse/internal/types"
)

// EventLog records acquisition and release events in order.
type EventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *EventLog) add(event string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
}

// Events returns a copy of the recorded events.
func (l *EventLog) Events() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// FindCall captures the arguments of one Find.
type FindCall struct {
	Namespace types.Namespace
	Filter    bson.D
	Options   *options.FindOptions
}

// CommandCall captures the arguments of one RunCommand.
type CommandCall struct {
	Database string
	Command  bson.D
}

// Server is an in-memory database server. It implements connection.Dialer;
// every Dial opens a new client session against the same data.
type Server struct {
	// Log, if set, receives "client:dial" and "client:disconnect".
	Log *EventLog
	// DialErr makes Dial fail.
	DialErr error
	// Errors makes the named client method fail, e.g. Errors["Find"].
	Errors map[string]error
	// AggregateResult, if set, is returned by Aggregate instead of the
	// collection contents.
	AggregateResult []bson.D
	// Commands maps a command name to its reply.
	Commands map[string]bson.D

	mu          sync.Mutex
	data        map[string]map[string][]bson.D
	dials       int
	disconnects int
	open        int
	maxOpen     int
	finds       []FindCall
	pipelines   [][]bson.D
	commands    []CommandCall
	requests    []connection.DialRequest
	cursors     []*SliceCursor
}

// NewServer creates an empty server.
func NewServer() *Server {
	return &Server{
		data:     make(map[string]map[string][]bson.D),
		Errors:   make(map[string]error),
		Commands: make(map[string]bson.D),
	}
}

// Insert seeds documents into a collection.
func (s *Server) Insert(ns types.Namespace, docs ...bson.D) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection(ns, true)
	s.data[ns.Database][ns.Collection] = append(s.data[ns.Database][ns.Collection], docs...)
}

// CreateDatabase adds empty collections to a database.
func (s *Server) CreateDatabase(db string, collections ...string) {
	for _, c := range collections {
		s.Insert(types.Namespace{Database: db, Collection: c})
	}
}

// Documents returns the documents of a collection.
func (s *Server) Documents(ns types.Namespace) []bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]bson.D(nil), s.data[ns.Database][ns.Collection]...)
}

// HasDatabase reports whether db exists.
func (s *Server) HasDatabase(db string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[db]
	return ok
}

// HasCollection reports whether ns exists.
func (s *Server) HasCollection(ns types.Namespace) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[ns.Database][ns.Collection]
	return ok
}

// Stats returns dial and disconnect counts and the most clients open at once.
func (s *Server) Stats() (dials, disconnects, maxOpen int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials, s.disconnects, s.maxOpen
}

// Finds returns every recorded Find call.
func (s *Server) Finds() []FindCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FindCall(nil), s.finds...)
}

// Pipelines returns every recorded aggregation pipeline.
func (s *Server) Pipelines() [][]bson.D {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]bson.D(nil), s.pipelines...)
}

// RunCommands returns every command run so far.
func (s *Server) RunCommands() []CommandCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CommandCall(nil), s.commands...)
}

// Requests returns every dial request.
func (s *Server) Requests() []connection.DialRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]connection.DialRequest(nil), s.requests...)
}

// Cursors returns every cursor handed out, in order.
func (s *Server) Cursors() []*SliceCursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*SliceCursor(nil), s.cursors...)
}

// Dial implements connection.Dialer.
func (s *Server) Dial(_ context.Context, req connection.DialRequest) (connection.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.DialErr != nil {
		return nil, s.DialErr
	}
	s.dials++
	s.open++
	if s.open > s.maxOpen {
		s.maxOpen = s.open
	}
	s.Log.add("client:dial")
	return &client{server: s}, nil
}

func (s *Server) collection(ns types.Namespace, create bool) []bson.D {
	db, ok := s.data[ns.Database]
	if !ok {
		if !create {
			return nil
		}
		db = make(map[string][]bson.D)
		s.data[ns.Database] = db
	}
	docs, ok := db[ns.Collection]
	if !ok && create {
		db[ns.Collection] = []bson.D{}
	}
	return docs
}

func (s *Server) fail(method string) error {
	return s.Errors[method]
}

type client struct {
	server *Server
	closed bool
}

var errClientClosed = errors.New("client is disconnected")

func (c *client) begin(method string) error {
	if c.closed {
		return errClientClosed
	}
	return c.server.fail(method)
}

func (c *client) ListDatabaseNames(ctx context.Context) ([]string, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("ListDatabaseNames"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (c *client) ListCollectionNames(ctx context.Context, database string) ([]string, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("ListCollectionNames"); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(s.data[database]))
	for name := range s.data[database] {
		names = append(names, name)
	}
	// Servers return collections in no particular order.
	sort.Sort(sort.Reverse(sort.StringSlice(names)))
	return names, nil
}

// Find applies top-level equality filters and the limit. Projection and
// sort are recorded but not applied.
func (c *client) Find(ctx context.Context, ns types.Namespace, filter bson.D, opts *options.FindOptions) (connection.Cursor, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds = append(s.finds, FindCall{Namespace: ns, Filter: filter, Options: opts})
	if err := c.begin("Find"); err != nil {
		return nil, err
	}
	var out []bson.D
	for _, doc := range s.collection(ns, false) {
		if matches(doc, filter) {
			out = append(out, doc)
		}
	}
	if opts != nil && opts.Limit != nil && *opts.Limit > 0 && int(*opts.Limit) < len(out) {
		out = out[:*opts.Limit]
	}
	return s.newCursor(out), nil
}

func (c *client) Aggregate(ctx context.Context, ns types.Namespace, pipeline []bson.D) (connection.Cursor, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines = append(s.pipelines, pipeline)
	if err := c.begin("Aggregate"); err != nil {
		return nil, err
	}
	if s.AggregateResult != nil {
		return s.newCursor(s.AggregateResult), nil
	}
	return s.newCursor(s.collection(ns, false)), nil
}

func (c *client) InsertOne(ctx context.Context, ns types.Namespace, doc bson.D) (interface{}, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("InsertOne"); err != nil {
		return nil, err
	}
	id, ok := lookup(doc, "_id")
	if !ok {
		id = primitive.NewObjectID()
		doc = append(bson.D{{Key: "_id", Value: id}}, doc...)
	}
	s.collection(ns, true)
	s.data[ns.Database][ns.Collection] = append(s.data[ns.Database][ns.Collection], doc)
	return id, nil
}

func (c *client) ReplaceOneUpsert(ctx context.Context, ns types.Namespace, id interface{}, doc bson.D) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("ReplaceOneUpsert"); err != nil {
		return err
	}
	s.collection(ns, true)
	docs := s.data[ns.Database][ns.Collection]
	for i, existing := range docs {
		if v, ok := lookup(existing, "_id"); ok && reflect.DeepEqual(v, id) {
			docs[i] = doc
			return nil
		}
	}
	s.data[ns.Database][ns.Collection] = append(docs, doc)
	return nil
}

func (c *client) DeleteOne(ctx context.Context, ns types.Namespace, id interface{}) (int64, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("DeleteOne"); err != nil {
		return 0, err
	}
	docs := s.collection(ns, false)
	for i, existing := range docs {
		if v, ok := lookup(existing, "_id"); ok && reflect.DeepEqual(v, id) {
			s.data[ns.Database][ns.Collection] = append(docs[:i:i], docs[i+1:]...)
			return 1, nil
		}
	}
	return 0, nil
}

func (c *client) DropCollection(ctx context.Context, ns types.Namespace) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("DropCollection"); err != nil {
		return err
	}
	delete(s.data[ns.Database], ns.Collection)
	return nil
}

func (c *client) DropDatabase(ctx context.Context, database string) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("DropDatabase"); err != nil {
		return err
	}
	delete(s.data, database)
	return nil
}

func (c *client) RunCommand(ctx context.Context, database string, cmd bson.D) (bson.D, error) {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := c.begin("RunCommand"); err != nil {
		return nil, err
	}
	if len(cmd) == 0 {
		return nil, errors.New("empty command")
	}
	s.commands = append(s.commands, CommandCall{Database: database, Command: cmd})
	reply, ok := s.Commands[cmd[0].Key]
	if !ok {
		return nil, fmt.Errorf("no such command: %s", cmd[0].Key)
	}
	return reply, nil
}

func (c *client) Disconnect(ctx context.Context) error {
	s := c.server
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.closed {
		return errClientClosed
	}
	c.closed = true
	s.disconnects++
	s.open--
	s.Log.add("client:disconnect")
	return s.fail("Disconnect")
}

func (s *Server) newCursor(docs []bson.D) *SliceCursor {
	cur := &SliceCursor{docs: append([]bson.D(nil), docs...)}
	s.cursors = append(s.cursors, cur)
	return cur
}

// SliceCursor iterates a fixed list of documents.
type SliceCursor struct {
	mu       sync.Mutex
	docs     []bson.D
	pos      int
	consumed int
	closed   bool
}

// NewSliceCursor returns a cursor over docs.
func NewSliceCursor(docs ...bson.D) *SliceCursor {
	return &SliceCursor{docs: docs}
}

func (c *SliceCursor) Next(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.pos >= len(c.docs) {
		return false
	}
	c.pos++
	c.consumed++
	return true
}

// Decode round-trips the current document through BSON so any target type works.
func (c *SliceCursor) Decode(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pos == 0 {
		return errors.New("Decode called before Next")
	}
	raw, err := bson.Marshal(c.docs[c.pos-1])
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, v)
}

func (c *SliceCursor) Err() error { return nil }

func (c *SliceCursor) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Consumed returns how many documents were read.
func (c *SliceCursor) Consumed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.consumed
}

// Closed reports whether Close was called.
func (c *SliceCursor) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func lookup(doc bson.D, key string) (interface{}, bool) {
	for _, e := range doc {
		if e.Key == key {
			return e.Value, true
		}
	}
	return nil, false
}

func matches(doc, filter bson.D) bool {
	for _, cond := range filter {
		v, ok := lookup(doc, cond.Key)
		if !ok || !reflect.DeepEqual(v, cond.Value) {
			return false
		}
	}
	return true
}

// Forwarder is a fake tunnel.Forwarder that hands out loopback addresses
// without opening sockets.
type Forwarder struct {
	// Log, if set, receives "tunnel:open" and "tunnel:close".
	Log *EventLog
	// Err makes Open fail.
	Err error

	mu     sync.Mutex
	opened []Opened
	next   int
}

// Opened records one Open call.
type Opened struct {
	Tunnel types.SSHTunnel
	Remote types.Address
	Local  types.Address
}

// Open implements tunnel.Forwarder.
func (f *Forwarder) Open(_ context.Context, settings types.SSHTunnel, remote types.Address) (tunnel.Tunnel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.next++
	local := types.Address{Host: "127.0.0.1", Port: 40000 + f.next}
	f.opened = append(f.opened, Opened{Tunnel: settings, Remote: remote, Local: local})
	f.Log.add("tunnel:open")
	return &fakeTunnel{local: local, log: f.Log}, nil
}

// Opened returns every successful Open call.
func (f *Forwarder) Opened() []Opened {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Opened(nil), f.opened...)
}

type fakeTunnel struct {
	local types.Address
	log   *EventLog
}

func (t *fakeTunnel) LocalAddr() types.Address { return t.local }

func (t *fakeTunnel) Close() error {
	t.log.add("tunnel:close")
	return nil
}
