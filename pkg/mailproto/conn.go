// mailroom
// Copyright 2025 Blue Static <https://www.bluestatic.org>
// This program is free software licensed under the GNU General Public License,
// version 3.0. The full text of the license can be found in LICENSE.txt.
// SPDX-License-Identifier: GPL-3.0-only

package mailproto

import (
	"errors"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"src.bluestatic.org/mailroom/pkg/mailbox"
	"src.bluestatic.org/mailroom/pkg/metrics"
)

type state int

const (
	stateUnauthenticated state = iota
	stateAuthenticated
	stateClosed
)

const writeTimeout = 5 * time.Second

type connection struct {
	po PostOffice
	mb *mailbox.Mailbox

	nc net.Conn
	tp *textproto.Conn

	// wmu serializes writes from the session with the shutdown notice.
	wmu     sync.Mutex
	closing atomic.Bool

	baseLog *zap.Logger
	log     *zap.Logger

	idleTimeout time.Duration

	state
	line string

	user string
}

// AcceptConnection runs a session on netConn, with no idle timeout, until
// the client quits or disconnects. Sessions share mailboxes only through po.
func AcceptConnection(netConn net.Conn, po PostOffice, log *zap.Logger) {
	newConnection(netConn, po, log, Options{}).serve()
}

func newConnection(nc net.Conn, po PostOffice, log *zap.Logger, opts Options) *connection {
	log = log.With(zap.Stringer("client", nc.RemoteAddr()), zap.String("session", uuid.New().String()))
	return &connection{
		po:          po,
		nc:          nc,
		tp:          textproto.NewConn(nc),
		baseLog:     log,
		log:         log,
		idleTimeout: opts.IdleTimeout,
		state:       stateUnauthenticated,
	}
}

func (conn *connection) serve() {
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsCurrent.Inc()
	defer metrics.ConnectionsCurrent.Dec()
	defer conn.finish()

	conn.log.Info("accepted connection")
	conn.reply(msgGreeting, conn.po.Name())

	for conn.state != stateClosed {
		line, err := conn.readLine()
		if err != nil {
			conn.readFailed(err)
			return
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		conn.line = line

		verb, args := splitCommand(line)
		conn.log = conn.baseLog.With(zap.String("command", verb))
		metrics.CommandsTotal.WithLabelValues(metrics.CommandLabel(verb)).Inc()

		conn.dispatch(verb, args)
	}
}

func (conn *connection) dispatch(verb, args string) {
	switch verb {
	case "QUIT":
		conn.doQUIT()
		return
	case "NOOP":
		conn.reply(msgOK)
		return
	}

	if conn.state == stateUnauthenticated {
		if verb == "LOGIN" {
			conn.doLOGIN(args)
		} else {
			conn.fail(msgLoginFirst)
		}
		return
	}

	switch verb {
	case "LOGIN":
		conn.fail(msgAlreadyLoggedIn, conn.user)
	case "INBOX":
		conn.doINBOX()
	case "VIEW":
		conn.doVIEW(verb, args)
	case "COMPOSE":
		conn.doCOMPOSE()
	case "DELETE":
		conn.doDELETE(verb, args)
	case "SORT":
		conn.doSORT(args)
	case "FOLDERS":
		conn.doFOLDERS()
	case "MKFOLDER":
		conn.doMKFOLDER(verb, args)
	case "RMFOLDER":
		conn.doRMFOLDER(verb, args)
	default:
		conn.fail(msgUnknownCommand)
	}
}

// finish releases the connection and the session's hold on its mailbox.
func (conn *connection) finish() {
	conn.state = stateClosed
	conn.tp.Close()

	if conn.mb != nil {
		if err := conn.po.CloseMailbox(conn.user); err != nil {
			conn.baseLog.Error("failed to close mailbox", zap.Error(err))
		}
	}
	conn.baseLog.Info("connection closed")
}

func (conn *connection) readLine() (string, error) {
	if conn.idleTimeout > 0 {
		if err := conn.nc.SetReadDeadline(time.Now().Add(conn.idleTimeout)); err != nil {
			return "", err
		}
	}
	return conn.tp.ReadLine()
}

// readFailed ends the session after a failed read. Only an idle timeout is
// reported to the client.
func (conn *connection) readFailed(err error) {
	conn.state = stateClosed

	var netErr net.Error
	switch {
	case conn.closing.Load():
		conn.log.Info("session ended by server shutdown")
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		conn.log.Info("client disconnected")
	case errors.As(err, &netErr) && netErr.Timeout():
		conn.log.Info("idle timeout", zap.Duration("timeout", conn.idleTimeout))
		metrics.IdleTimeouts.Inc()
		conn.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
		conn.reply(msgIdleTimeout)
	default:
		conn.log.Error("ReadLine()", zap.Error(err))
	}
}

// shutdown is called from the Server, not the session goroutine. It writes
// the shutdown notice and closes the socket, which unblocks the session's
// pending read.
func (conn *connection) shutdown() {
	conn.closing.Store(true)
	conn.nc.SetWriteDeadline(time.Now().Add(time.Second))

	conn.wmu.Lock()
	conn.tp.PrintfLine("%s", msgShutdown)
	conn.wmu.Unlock()

	conn.nc.Close()
}

func (conn *connection) reply(format string, args ...any) {
	conn.replyLines(fmt.Sprintf(format, args...))
}

func (conn *connection) fail(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	conn.log.Warn("error", zap.String("line", conn.line), zap.String("message", msg))
	conn.replyLines(msg)
}

func (conn *connection) replyLines(lines ...string) {
	conn.wmu.Lock()
	defer conn.wmu.Unlock()

	for _, line := range lines {
		conn.log.Debug("reply", zap.String("reply", line))
		if err := conn.tp.PrintfLine("%s", line); err != nil {
			conn.log.Warn("failed to write reply", zap.Error(err))
			return
		}
	}
}

func (conn *connection) doQUIT() {
	conn.reply(msgGoodbye)
	conn.state = stateClosed
}

func (conn *connection) doLOGIN(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		metrics.LoginsTotal.WithLabelValues("invalid").Inc()
		conn.fail(msgLoginUsage)
		return
	}
	user := fields[0]

	mb, err := conn.po.OpenMailbox(user)
	if err != nil {
		metrics.LoginsTotal.WithLabelValues("error").Inc()
		conn.log.Error("failed to open mailbox", zap.String("user", user), zap.Error(err))
		conn.fail(msgMailboxError, err)
		return
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	conn.user = user
	conn.mb = mb
	conn.state = stateAuthenticated
	conn.baseLog = conn.baseLog.With(zap.String("user", user))
	conn.log = conn.baseLog.With(zap.String("command", "LOGIN"))
	conn.log.Info("logged in")

	conn.replyLines(fmt.Sprintf(msgLoggedIn, user), msgCommands)
}

func (conn *connection) doINBOX() {
	emails := conn.mb.Inbox().Emails()
	if len(emails) == 0 {
		conn.reply(msgInboxEmpty)
		return
	}

	lines := make([]string, len(emails))
	for i, e := range emails {
		lines[i] = fmt.Sprintf("%d: %s", i+1, e.Summary())
	}
	conn.replyLines(lines...)
}

func (conn *connection) doVIEW(verb, args string) {
	idx, ok := conn.parseIndex(verb, args)
	if !ok {
		return
	}

	e, err := conn.mb.Inbox().Email(idx)
	if err != nil {
		conn.fail(msgInvalidIndex)
		return
	}

	conn.replyLines(
		"To: "+e.To,
		"CC: "+e.CC,
		"BCC: "+e.BCC,
		"Subject: "+e.Subject,
		"Body: "+e.Body,
		"Timestamp: "+e.Timestamp.Format(time.RFC1123Z),
	)
}

func (conn *connection) doDELETE(verb, args string) {
	idx, ok := conn.parseIndex(verb, args)
	if !ok {
		return
	}

	e, err := conn.mb.MoveEmail(mailbox.InboxName, idx, mailbox.TrashName)
	if errors.Is(err, mailbox.ErrNotFound) {
		conn.fail(msgInvalidIndex)
		return
	} else if err != nil {
		conn.log.Error("failed to move email", zap.Error(err))
		conn.fail("%s", err.Error())
		return
	}

	conn.log.Info("moved email to trash", zap.String("subject", e.Subject))
	conn.reply(msgMovedToTrash)
}

// doCOMPOSE prompts for and reads exactly one line per field. Blank lines are
// valid, empty fields.
func (conn *connection) doCOMPOSE() {
	prompts := []string{msgPromptTo, msgPromptCC, msgPromptBCC, msgPromptSubject, msgPromptBody}
	fields := make([]string, len(prompts))

	conn.reply(msgComposeStart)
	for i, prompt := range prompts {
		conn.replyLines(prompt)
		line, err := conn.readLine()
		if err != nil {
			conn.readFailed(err)
			return
		}
		fields[i] = line
	}

	e := mailbox.NewEmail(fields[0], fields[1], fields[2], fields[3], fields[4])
	conn.mb.Inbox().AddEmail(e)
	metrics.EmailsComposed.Inc()

	conn.log.Info("composed email", zap.String("to", e.To), zap.String("subject", e.Subject))
	conn.reply(msgComposeDone)
}

func (conn *connection) doSORT(args string) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		conn.fail(msgSortUsage)
		return
	}

	policy, err := mailbox.ParseSortPolicy(fields[0])
	if err != nil {
		conn.fail(msgSortUnknown, fields[0])
		return
	}
	if err := conn.mb.Inbox().SetSortPolicy(policy); err != nil {
		conn.fail(msgSortUnknown, fields[0])
		return
	}
	conn.reply(msgSorted, policy)
}

func (conn *connection) doFOLDERS() {
	folders := conn.mb.Folders()
	lines := make([]string, len(folders))
	for i, f := range folders {
		lines[i] = fmt.Sprintf(msgFolderListing, f.Name(), f.Len())
	}
	conn.replyLines(lines...)
}

func (conn *connection) doMKFOLDER(verb, args string) {
	if args == "" {
		conn.fail(msgFolderUsage, verb)
		return
	}

	_, err := conn.mb.AddFolder(args)
	switch {
	case err == nil:
		conn.log.Info("created folder", zap.String("folder", args))
		conn.reply(msgFolderCreated, args)
	case errors.Is(err, mailbox.ErrDuplicateFolder):
		conn.fail(msgFolderExists, args)
	case errors.Is(err, mailbox.ErrInvalidFolderName):
		conn.fail(msgFolderInvalid)
	default:
		conn.log.Error("failed to create folder", zap.Error(err))
		conn.fail("%s", err.Error())
	}
}

func (conn *connection) doRMFOLDER(verb, args string) {
	if args == "" {
		conn.fail(msgFolderUsage, verb)
		return
	}

	err := conn.mb.RemoveFolder(args)
	switch {
	case err == nil:
		conn.log.Info("removed folder", zap.String("folder", args))
		conn.reply(msgFolderRemoved, args)
	case errors.Is(err, mailbox.ErrProtectedFolder):
		conn.fail(msgFolderProtect, args)
	case errors.Is(err, mailbox.ErrNotFound):
		conn.fail(msgFolderNotFound, args)
	default:
		conn.log.Error("failed to remove folder", zap.Error(err))
		conn.fail("%s", err.Error())
	}
}

// parseIndex converts the 1-based index argument of verb to a 0-based index.
// It replies to the client and returns false if the argument is unusable.
func (conn *connection) parseIndex(verb, args string) (int, bool) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		conn.fail(msgIndexUsage, verb)
		return 0, false
	}
	n, err := strconv.Atoi(fields[0])
	if err != nil {
		conn.fail(msgIndexFormat)
		return 0, false
	}
	return n - 1, true
}

// splitCommand separates the case-insensitive verb from its arguments.
func splitCommand(line string) (verb, args string) {
	i := strings.IndexFunc(line, unicode.IsSpace)
	if i < 0 {
		return strings.ToUpper(line), ""
	}
	return strings.ToUpper(line[:i]), strings.TrimSpace(line[i:])
}
