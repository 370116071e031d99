package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// ---------- helpers ----------

var uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

const adminPassword = "let-me-in"

// startTestServer spins up an httptest.Server with a running game and hub
// and returns the server and its WebSocket URL.
func startTestServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()

	cfg := testConfig()
	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Admin.PasswordHash = string(hash)

	arena, err := NewArena(testLayout())
	if err != nil {
		t.Fatal(err)
	}
	auth, err := NewAuth(cfg.Admin)
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	game := NewGame(cfg, arena, nil, zap.NewNop())
	go game.Run(ctx)
	hub := NewHub(game, auth, nil, cfg.Server, zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(SetupRoutes(hub, cfg.Server))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

// dialWS opens a WebSocket connection to the test server.
func dialWS(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial WS: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// sendMsg sends a typed message over the WebSocket.
func sendMsg(t *testing.T, conn *websocket.Conn, msgType string, data interface{}) {
	t.Helper()
	raw, _ := json.Marshal(Envelope{T: msgType, Data: data})
	if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		t.Fatalf("write WS: %v", err)
	}
}

// readUntil reads text messages until one of type msgType arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) InEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, raw, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", msgType, err)
		}
		if kind != websocket.TextMessage {
			continue
		}
		var env InEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if env.T == msgType {
			return env
		}
	}
}

// expectClosed reads until the server closes the connection.
func expectClosed(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				t.Errorf("expected policy-violation close, got %v", err)
			}
			return
		}
	}
}

// join sends a join and returns the assigned participant id.
func join(t *testing.T, conn *websocket.Conn, username string, binary bool) string {
	t.Helper()
	sendMsg(t, conn, MsgJoin, JoinMsg{Settings: Settings{Username: username, Avatar: "generic-lpc"}, Binary: binary})
	var welcome WelcomeMsg
	if err := json.Unmarshal(readUntil(t, conn, MsgWelcome).D, &welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	readUntil(t, conn, MsgInitialState)
	return welcome.ID
}

// ---------- websocket ----------

func TestJoinWelcomeAndInitialState(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)

	sendMsg(t, conn, MsgJoin, JoinMsg{Settings: Settings{Username: "ana", Avatar: "fauna", IsVoter: true}})
	var welcome WelcomeMsg
	json.Unmarshal(readUntil(t, conn, MsgWelcome).D, &welcome)
	if !uuidRegex.MatchString(welcome.ID) {
		t.Errorf("participant id %q is not a UUID v4", welcome.ID)
	}
	if welcome.TickRate != 10 {
		t.Errorf("expected tick rate 10, got %d", welcome.TickRate)
	}

	var state map[string]ParticipantState
	json.Unmarshal(readUntil(t, conn, MsgInitialState).D, &state)
	me, ok := state[welcome.ID]
	if !ok || len(state) != 1 {
		t.Fatalf("initial state should hold only the new participant, got %v", state)
	}
	if me.Username != "ana" || me.Avatar != "fauna" || !me.IsVoter || me.Health != 100 {
		t.Errorf("unexpected state %+v", me)
	}
}

func TestJoinInvalidSettingsDisconnects(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)

	sendMsg(t, conn, MsgJoin, JoinMsg{Settings: Settings{Username: "ana", Avatar: "dragon"}})
	var e ErrorMsg
	json.Unmarshal(readUntil(t, conn, MsgServerError).D, &e)
	if !strings.Contains(e.Msg, "avatar") {
		t.Errorf("error should name the avatar, got %q", e.Msg)
	}
	expectClosed(t, conn)
}

func TestInvalidSettingsUpdateKeepsConnection(t *testing.T) {
	_, wsURL := startTestServer(t)
	connA := dialWS(t, wsURL)
	connB := dialWS(t, wsURL)
	idA := join(t, connA, "a", false)
	join(t, connB, "b", false)

	sendMsg(t, connA, MsgSettings, Settings{Username: "a", Avatar: "dragon"})
	readUntil(t, connA, MsgServerError)

	sendMsg(t, connA, MsgSettings, Settings{Username: " ana ", Avatar: "fauna", IsVoter: true})
	var relay SettingsMsg
	json.Unmarshal(readUntil(t, connB, MsgSettings).D, &relay)
	if relay.ID != idA || relay.Username != " ana " || relay.Avatar != "fauna" {
		t.Errorf("unexpected relay %+v", relay)
	}
}

func TestInputBeforeJoinIgnored(t *testing.T) {
	srv, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)
	sendMsg(t, conn, MsgInput, MovementIntent{Left: true})
	sendMsg(t, conn, MsgFightJoin, nil)
	time.Sleep(200 * time.Millisecond)

	resp, err := http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap SessionSnapshot
	json.NewDecoder(resp.Body).Decode(&snap)
	if len(snap.Participants) != 0 || snap.Phase != "idle" {
		t.Errorf("unjoined peer should not affect the session, got %+v", snap)
	}
}

func TestMovementSeenByOthers(t *testing.T) {
	_, wsURL := startTestServer(t)
	connA := dialWS(t, wsURL)
	connB := dialWS(t, wsURL)
	idA := join(t, connA, "a", false)
	join(t, connB, "b", false)

	sendMsg(t, connA, MsgInput, MovementIntent{Left: true})
	for {
		var delta map[string]DeltaEntry
		json.Unmarshal(readUntil(t, connB, MsgStateDelta).D, &delta)
		if d, ok := delta[idA]; ok {
			if d.X != 90 || d.Orientation != FacingLeft {
				t.Errorf("unexpected delta for a: %+v", d)
			}
			return
		}
	}
}

func TestBinaryInputAndDelta(t *testing.T) {
	_, wsURL := startTestServer(t)
	connA := dialWS(t, wsURL)
	connB := dialWS(t, wsURL)
	idA := join(t, connA, "a", false)
	join(t, connB, "b", true)

	if err := connA.WriteMessage(websocket.BinaryMessage, encodeBinaryInput(MovementIntent{Down: true})); err != nil {
		t.Fatal(err)
	}

	connB.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		kind, raw, err := connB.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for binary delta: %v", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		var frame DeltaFrame
		if err := msgpack.Unmarshal(raw, &frame); err != nil {
			t.Fatalf("msgpack unmarshal: %v", err)
		}
		if d, ok := frame.Changed[idA]; ok {
			if d.Y != 110 || d.Orientation != FacingDown {
				t.Errorf("unexpected delta for a: %+v", d)
			}
			return
		}
	}
}

func TestFightLifecycleOverWebsocket(t *testing.T) {
	_, wsURL := startTestServer(t)
	connA := dialWS(t, wsURL)
	connB := dialWS(t, wsURL)
	idA := join(t, connA, "a", false)
	idB := join(t, connB, "b", false)

	sendMsg(t, connA, MsgFightJoin, nil)
	readUntil(t, connB, MsgFightWaitingRoom)
	sendMsg(t, connB, MsgFightJoin, nil)

	var start FightStartMsg
	json.Unmarshal(readUntil(t, connA, MsgFightStart).D, &start)
	if len(start.Fighters) != 2 || start.Fighters[0] != idA || start.Fighters[1] != idB {
		t.Fatalf("unexpected fighters %v", start.Fighters)
	}

	sendMsg(t, connA, MsgFightAction, FightActionMsg{Orientation: FacingRight})
	var relayed FightActionMsg
	json.Unmarshal(readUntil(t, connB, MsgFightAction).D, &relayed)
	if relayed.ID != idA || relayed.Orientation != FacingRight || relayed.X != 400 {
		t.Errorf("unexpected relay %+v", relayed)
	}
	var hurt HurtMsg
	json.Unmarshal(readUntil(t, connB, MsgHurt).D, &hurt)
	if hurt.ID != idB || hurt.Health != 75 || hurt.Orientation != FacingLeft {
		t.Errorf("unexpected hurt %+v", hurt)
	}

	sendMsg(t, connB, MsgRestart, nil)
	readUntil(t, connA, MsgRestart)
}

func TestAdminKickOut(t *testing.T) {
	_, wsURL := startTestServer(t)
	admin := dialWS(t, wsURL)
	target := dialWS(t, wsURL)
	idT := join(t, target, "t", false)

	sendMsg(t, admin, MsgKickOut, KickOutMsg{ID: idT, Token: "nope"})
	readUntil(t, admin, MsgServerError)

	sendMsg(t, admin, MsgAdminLogin, AdminLoginMsg{Password: "wrong"})
	readUntil(t, admin, MsgServerError)

	sendMsg(t, admin, MsgAdminLogin, AdminLoginMsg{Password: adminPassword})
	var ok AdminOKMsg
	json.Unmarshal(readUntil(t, admin, MsgAdminOK).D, &ok)
	if ok.Token == "" {
		t.Fatal("expected a token")
	}

	sendMsg(t, admin, MsgKickOut, KickOutMsg{ID: idT, Token: ok.Token})
	readUntil(t, target, MsgKicked)
	expectClosed(t, target)
}

func TestDuplicateJoinDisconnects(t *testing.T) {
	_, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)
	join(t, conn, "a", false)

	sendMsg(t, conn, MsgJoin, JoinMsg{Settings: Settings{Username: "a", Avatar: "fauna"}})
	readUntil(t, conn, MsgServerError)
	expectClosed(t, conn)
}

// ---------- HTTP ----------

func TestHealthz(t *testing.T) {
	srv, _ := startTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != 200 || string(body) != "ok" {
		t.Errorf("unexpected healthz %d %q", resp.StatusCode, body)
	}
}

func TestSessionEndpoint(t *testing.T) {
	srv, wsURL := startTestServer(t)
	conn := dialWS(t, wsURL)
	id := join(t, conn, "ana", false)

	resp, err := http.Get(srv.URL + "/api/session")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("unexpected content type %q", ct)
	}
	var snap SessionSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatal(err)
	}
	if len(snap.Participants) != 1 || snap.Participants[0].ID != id || snap.Participants[0].ArrowsFree != 5 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestInviteQRCode(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/invite.png?url=https://island.example/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.Header.Get("Content-Type") != "image/png" {
		t.Errorf("unexpected content type %q", resp.Header.Get("Content-Type"))
	}
	if len(body) < 8 || string(body[1:4]) != "PNG" {
		t.Errorf("response is not a PNG")
	}

	bad, err := http.Get(srv.URL + "/invite.png?url=javascript:alert(1)")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("non-http url should be rejected, got %d", bad.StatusCode)
	}
}

func TestFightsEndpointWithoutJournal(t *testing.T) {
	srv, _ := startTestServer(t)

	resp, err := http.Get(srv.URL + "/api/fights")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("expected empty list, got %s", body)
	}

	bad, err := http.Get(srv.URL + "/api/fights?limit=abc")
	if err != nil {
		t.Fatal(err)
	}
	bad.Body.Close()
	if bad.StatusCode != http.StatusBadRequest {
		t.Errorf("bad limit should be 400, got %d", bad.StatusCode)
	}
}
