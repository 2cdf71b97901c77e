package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/RedHatInsights/messaging-connector/internal/domain"
	"github.com/RedHatInsights/messaging-connector/internal/notifier"
	"github.com/RedHatInsights/messaging-connector/internal/protocol"
)

type statusReport struct {
	ConnectionID domain.ConnectionID
	Status       domain.ConnectionStatus
}

type eventReport struct {
	ConnectionID domain.ConnectionID
	Event        domain.EventKind
	Data         map[string]interface{}
}

type messageStatusReport struct {
	MessageID string
	Status    domain.MessageStatus
}

type fakeNotifier struct {
	sync.Mutex
	events          []eventReport
	statuses        []statusReport
	inbound         []domain.InboundMessage
	messageStatuses []messageStatusReport
	jobStatuses     []notifier.JobStatusUpdate
}

func (fn *fakeNotifier) Notify(ctx context.Context, connectionID domain.ConnectionID, event domain.EventKind, data map[string]interface{}) {
	fn.Lock()
	defer fn.Unlock()
	fn.events = append(fn.events, eventReport{connectionID, event, data})
}

func (fn *fakeNotifier) UpdateConnectionStatus(ctx context.Context, connectionID domain.ConnectionID, status domain.ConnectionStatus) {
	fn.Lock()
	defer fn.Unlock()
	fn.statuses = append(fn.statuses, statusReport{connectionID, status})
}

func (fn *fakeNotifier) SaveIncomingMessage(ctx context.Context, msg domain.InboundMessage) {
	fn.Lock()
	defer fn.Unlock()
	fn.inbound = append(fn.inbound, msg)
}

func (fn *fakeNotifier) UpdateMessageStatus(ctx context.Context, messageID string, status domain.MessageStatus) {
	fn.Lock()
	defer fn.Unlock()
	fn.messageStatuses = append(fn.messageStatuses, messageStatusReport{messageID, status})
}

func (fn *fakeNotifier) UpdateJobStatus(ctx context.Context, update notifier.JobStatusUpdate) {
	fn.Lock()
	defer fn.Unlock()
	fn.jobStatuses = append(fn.jobStatuses, update)
}

func (fn *fakeNotifier) statusesFor(connectionID domain.ConnectionID) []domain.ConnectionStatus {
	fn.Lock()
	defer fn.Unlock()

	var statuses []domain.ConnectionStatus
	for _, s := range fn.statuses {
		if s.ConnectionID == connectionID {
			statuses = append(statuses, s.Status)
		}
	}
	return statuses
}

type fakeHandle struct {
	sync.Mutex
	options       protocol.Options
	sent          []string
	sendErr       error
	pairingCode   string
	pairingErr    error
	logoutErr     error
	groupMetadata map[string]*protocol.GroupMetadata
	logoutCount   int
	closeCount    int
}

func (fh *fakeHandle) Send(ctx context.Context, address string, message protocol.OutboundMessage) (*protocol.Receipt, error) {
	fh.Lock()
	defer fh.Unlock()

	if fh.sendErr != nil {
		return nil, fh.sendErr
	}

	fh.sent = append(fh.sent, address)
	return &protocol.Receipt{Key: protocol.MessageKey{RemoteJID: address, FromMe: true, ID: "MSG-1"}}, nil
}

func (fh *fakeHandle) RequestPairingCode(ctx context.Context, phoneNumber string) (string, error) {
	return fh.pairingCode, fh.pairingErr
}

func (fh *fakeHandle) FetchGroupMetadata(ctx context.Context, groupID string) (*protocol.GroupMetadata, error) {
	metadata, ok := fh.groupMetadata[groupID]
	if !ok {
		return nil, errors.New("item-not-found")
	}
	return metadata, nil
}

func (fh *fakeHandle) Logout(ctx context.Context) error {
	fh.Lock()
	defer fh.Unlock()
	fh.logoutCount++
	return fh.logoutErr
}

func (fh *fakeHandle) Close() {
	fh.Lock()
	defer fh.Unlock()
	fh.closeCount++
}

func (fh *fakeHandle) closed() int {
	fh.Lock()
	defer fh.Unlock()
	return fh.closeCount
}

func (fh *fakeHandle) emitConnectionUpdate(update protocol.ConnectionUpdate) {
	fh.options.Handlers.OnConnectionUpdate(update)
}

// fakeOpener hands out a fresh handle per Open, built by newHandle when set
type fakeOpener struct {
	sync.Mutex
	handles   []*fakeHandle
	openErr   error
	newHandle func() *fakeHandle
}

func (fo *fakeOpener) Open(ctx context.Context, connectionID domain.ConnectionID, options protocol.Options) (protocol.Handle, error) {
	fo.Lock()
	defer fo.Unlock()

	if fo.openErr != nil {
		return nil, fo.openErr
	}

	handle := &fakeHandle{}
	if fo.newHandle != nil {
		handle = fo.newHandle()
	}
	handle.options = options

	fo.handles = append(fo.handles, handle)
	return handle, nil
}

func (fo *fakeOpener) last() *fakeHandle {
	fo.Lock()
	defer fo.Unlock()
	return fo.handles[len(fo.handles)-1]
}

func (fo *fakeOpener) opened() int {
	fo.Lock()
	defer fo.Unlock()
	return len(fo.handles)
}

type fakeStore struct {
	sync.Mutex
	creds       map[domain.ConnectionID]*protocol.Credentials
	loadErr     error
	saveErrs    []error
	saveCalls   int
	deleteCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{creds: make(map[domain.ConnectionID]*protocol.Credentials)}
}

func (fs *fakeStore) Load(ctx context.Context, connectionID domain.ConnectionID) (*protocol.Credentials, error) {
	fs.Lock()
	defer fs.Unlock()

	if fs.loadErr != nil {
		return nil, fs.loadErr
	}

	if creds, ok := fs.creds[connectionID]; ok {
		return creds, nil
	}
	return protocol.NewCredentials(), nil
}

func (fs *fakeStore) Save(ctx context.Context, connectionID domain.ConnectionID, creds *protocol.Credentials) error {
	fs.Lock()
	defer fs.Unlock()

	fs.saveCalls++
	if len(fs.saveErrs) > 0 {
		err := fs.saveErrs[0]
		fs.saveErrs = fs.saveErrs[1:]
		if err != nil {
			return err
		}
	}

	fs.creds[connectionID] = creds
	return nil
}

func (fs *fakeStore) Delete(ctx context.Context, connectionID domain.ConnectionID) error {
	fs.Lock()
	defer fs.Unlock()

	fs.deleteCalls++
	delete(fs.creds, connectionID)
	return nil
}

type fakeTimer struct {
	delay   time.Duration
	fn      func()
	stopped bool
}

func (ft *fakeTimer) Stop() bool {
	wasActive := !ft.stopped
	ft.stopped = true
	return wasActive
}

// fakeClock records scheduled callbacks so tests decide when they fire
type fakeClock struct {
	sync.Mutex
	timers []*fakeTimer
}

func (fc *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	fc.Lock()
	defer fc.Unlock()

	timer := &fakeTimer{delay: d, fn: f}
	fc.timers = append(fc.timers, timer)
	return timer
}

func (fc *fakeClock) fire(i int) {
	fc.Lock()
	timer := fc.timers[i]
	fc.Unlock()

	timer.fn()
}

func (fc *fakeClock) pending() int {
	fc.Lock()
	defer fc.Unlock()
	return len(fc.timers)
}
