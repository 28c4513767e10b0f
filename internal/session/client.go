package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/shiva/swiftparcel/internal/auth"
	"github.com/shiva/swiftparcel/internal/model"
	"github.com/shiva/swiftparcel/internal/repository"
	"github.com/shiva/swiftparcel/internal/service"
	"github.com/shiva/swiftparcel/pkg/geo"
)

const (
	// writeWait bounds a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long a silent peer stays alive; pings go out at
	// heartbeatPeriod, well inside it.
	pongWait        = 75 * time.Second
	heartbeatPeriod = 30 * time.Second
	// sendBuffer is the per-client outbound queue. A full queue drops
	// frames rather than blocking the hub (replay covers the gap).
	sendBuffer     = 64
	maxMessageSize = 16 * 1024

	maxChatLen = 500

	// expiryGrace is how long an expired session may linger after the
	// session_expired frame before the transport is closed.
	expiryGrace = 5 * time.Second
)

// ─── Server ─────────────────────────────────────────────────

// Server upgrades HTTP requests into session clients and owns the shared
// collaborators every client uses.
type Server struct {
	hub       *Hub
	verifier  *auth.Verifier
	users     *repository.UserRepository
	bookings  *repository.BookingRepository
	locations *repository.LocationRepository
	messages  *repository.MessageRepository
	area      *service.ServiceAreaService
	booking   *service.BookingService
	dispatch  *service.DispatchService
	presence  *service.PresenceService

	upgrader websocket.Upgrader
}

// NewServer wires the session plane. booking, dispatch and presence may be
// nil in tests; the events that need them answer with an error frame.
func NewServer(
	hub *Hub,
	verifier *auth.Verifier,
	users *repository.UserRepository,
	bookings *repository.BookingRepository,
	locations *repository.LocationRepository,
	messages *repository.MessageRepository,
	area *service.ServiceAreaService,
	booking *service.BookingService,
	dispatch *service.DispatchService,
	presence *service.PresenceService,
) *Server {
	return &Server{
		hub:       hub,
		verifier:  verifier,
		users:     users,
		bookings:  bookings,
		locations: locations,
		messages:  messages,
		area:      area,
		booking:   booking,
		dispatch:  dispatch,
		presence:  presence,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Mobile clients connect from app webviews with no Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP is the /ws endpoint: authenticate, upgrade, run the pumps.
// The token travels in the Authorization header or a `token` query
// parameter (browser websocket clients cannot set headers).
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	identity, err := s.verifier.Verify(token)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	expiresAt, _ := s.verifier.Expiry(token)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[session] upgrade failed for %s: %v", identity.UserID, err)
		return
	}

	c := &Client{
		server:    s,
		conn:      conn,
		identity:  identity,
		expiresAt: expiresAt,
		send:      make(chan Frame, sendBuffer),
		done:      make(chan struct{}),
	}
	c.start(r.Context())
}

// ─── Client ─────────────────────────────────────────────────

// Client is one authenticated websocket connection. Inbound events are
// handled on the read pump goroutine, strictly in arrival order; outbound
// frames go through the buffered send channel and the write pump.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	identity  auth.Identity
	expiresAt time.Time
	send      chan Frame
	done      chan struct{}
	closeOnce sync.Once
}

// TrySend queues a frame without blocking. Returns false when the client's
// buffer is full and the frame was dropped.
func (c *Client) TrySend(frame Frame) bool {
	select {
	case c.send <- frame:
		return true
	default:
		log.Printf("[session] drop %s for %s (buffer full)", frame.Event, c.identity.UserID)
		return false
	}
}

func (c *Client) sendError(code, message string) {
	c.TrySend(NewFrame(EvError, ErrorPayload{Code: code, Message: message}))
}

// shutdown closes done exactly once; disconnect and the expiry watchdog
// both race to it.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() { close(c.done) })
}

// start registers the client, replays state and runs both pumps. It blocks
// until the connection dies.
func (c *Client) start(ctx context.Context) {
	rooms := []string{
		RoomUser(c.identity.UserID),
		RoomType(c.identity.UserType),
	}
	c.server.hub.Register(c, rooms...)

	log.Printf("[session] ✓ %s connected (%s)", c.identity.UserID, c.identity.UserType)
	c.TrySend(NewFrame(EvConnected, ConnectedPayload{
		UserID:   c.identity.UserID,
		UserType: string(c.identity.UserType),
		Rooms:    rooms,
	}))

	c.replayActiveTrips(ctx)

	if !c.expiresAt.IsZero() {
		go c.watchExpiry()
	}
	go c.writePump()
	c.readPump(ctx)
}

// watchExpiry ends the session when its token expires: a session_expired
// frame so the client can reauthenticate, then a hard close after a short
// grace.
func (c *Client) watchExpiry() {
	d := time.Until(c.expiresAt)
	if d < 0 {
		d = 0
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		c.TrySend(NewFrame(EvSessionExpired, ErrorPayload{
			Code:    "TOKEN_EXPIRED",
			Message: "session token expired, reconnect with a fresh token",
		}))
		time.Sleep(expiryGrace)
		c.shutdown()
		_ = c.conn.Close()
	case <-c.done:
	}
}

// replayActiveTrips pushes the caller's in-flight bookings as one
// active_trips frame so a reconnecting app recovers its trip screen without
// a REST round trip.
func (c *Client) replayActiveTrips(ctx context.Context) {
	active, err := c.server.bookings.ActiveForUser(ctx, c.identity.UserID, c.identity.UserType)
	if err != nil {
		log.Printf("[session] WARNING: replay for %s: %v", c.identity.UserID, err)
		return
	}
	for _, b := range active {
		c.server.hub.Join(c, RoomBooking(b.ID))
	}
	if len(active) > 0 {
		c.TrySend(NewFrame(EvActiveTrips, active))
	}
}

// ─── Pumps ──────────────────────────────────────────────────

func (c *Client) readPump(ctx context.Context) {
	defer c.disconnect()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame Frame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[session] %s read error: %v", c.identity.UserID, err)
			}
			return
		}
		c.handle(ctx, frame)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(frame); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// disconnect applies the presence rules and tears the client down.
func (c *Client) disconnect() {
	c.shutdown()
	c.server.hub.Unregister(c)
	_ = c.conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	applyDisconnectPresence(ctx, c.identity, c.server.users, c.server.bookings)

	log.Printf("[session] ✗ %s disconnected", c.identity.UserID)
}

// presenceStore is the slice of the user repository the disconnect path
// touches.
type presenceStore interface {
	ForceBusy(ctx context.Context, driverID string) error
	TouchLastSeen(ctx context.Context, driverID string) error
	SetCustomerPresence(ctx context.Context, userID string, online bool) error
}

// activeBookingSource answers "is this driver mid-trip".
type activeBookingSource interface {
	ActiveForDriver(ctx context.Context, driverID string) (*model.Booking, error)
}

// applyDisconnectPresence encodes the transport-loss presence rules.
//
// Drivers stay online on transport loss: connection drop is not intent to
// go offline. A driver with an active booking is additionally pinned busy
// so dispatch cannot double-book them during the reconnect window. Only
// customers go offline on disconnect.
func applyDisconnectPresence(ctx context.Context, identity auth.Identity, users presenceStore, bookings activeBookingSource) {
	switch identity.UserType {
	case model.TypeDriver:
		active, err := bookings.ActiveForDriver(ctx, identity.UserID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			log.Printf("[session] WARNING: active lookup for %s: %v", identity.UserID, err)
		}
		if active != nil {
			if err := users.ForceBusy(ctx, identity.UserID); err != nil {
				log.Printf("[session] WARNING: force busy %s: %v", identity.UserID, err)
			}
		} else if err := users.TouchLastSeen(ctx, identity.UserID); err != nil {
			log.Printf("[session] WARNING: touch last_seen %s: %v", identity.UserID, err)
		}
	default:
		if err := users.SetCustomerPresence(ctx, identity.UserID, false); err != nil {
			log.Printf("[session] WARNING: presence %s: %v", identity.UserID, err)
		}
	}
}

// ─── Inbound dispatch ───────────────────────────────────────

func (c *Client) handle(ctx context.Context, frame Frame) {
	switch frame.Event {
	case EvPing:
		c.TrySend(NewFrame(EvPong, nil))
	case EvJoinRoom:
		c.handleJoin(ctx, frame.Data)
	case EvLeaveRoom:
		c.handleLeave(frame.Data)
	case EvDriverStatus:
		c.handleDriverStatus(ctx, frame.Data)
	case EvLocationUpdate:
		c.handleLocation(ctx, frame.Data)
	case EvSubscribeTrack:
		c.handleSubscribe(ctx, frame.Data)
	case EvUnsubscribeTrack:
		c.handleUnsubscribe(frame.Data)
	case EvSendMessage:
		c.handleChat(ctx, frame.Data)
	case EvTypingStart:
		c.handleTyping(frame.Data, true)
	case EvTypingStop:
		c.handleTyping(frame.Data, false)
	case EvPresenceUpdate:
		c.handlePresence(ctx, frame.Data)
	case EvEmergency:
		c.handleEmergency(ctx, frame.Data)
	case EvTripStatus:
		c.handleTripStatus(ctx, frame.Data)
	case EvAcceptBooking:
		c.handleAccept(ctx, frame.Data)
	case EvRejectBooking:
		c.handleReject(ctx, frame.Data)
	default:
		c.sendError("VALIDATION_ERROR", "unknown event: "+frame.Event)
	}
}

func decode[T any](raw json.RawMessage, into *T) bool {
	return json.Unmarshal(raw, into) == nil
}

// wireCode maps service errors onto the error-code taxonomy the HTTP
// surface uses; session error frames carry the same codes.
func wireCode(err error) string {
	switch {
	case errors.Is(err, service.ErrBookingNotFound):
		return "BOOKING_NOT_FOUND"
	case errors.Is(err, service.ErrBookingAlreadyAssigned):
		return "BOOKING_ALREADY_ASSIGNED"
	case errors.Is(err, service.ErrDriverNotAvailable):
		return "DRIVER_NOT_AVAILABLE"
	case errors.Is(err, service.ErrDriverNotFound):
		return "DRIVER_NOT_FOUND"
	case errors.Is(err, service.ErrInvalidTransition):
		return "INVALID_TRANSITION"
	case errors.Is(err, service.ErrNotCancellable):
		return "NOT_CANCELLABLE"
	case errors.Is(err, service.ErrValidation):
		return "VALIDATION_ERROR"
	case errors.Is(err, service.ErrServiceArea):
		return "SERVICE_AREA_VIOLATION"
	case errors.Is(err, service.ErrUpstream):
		return "UPSTREAM_UNAVAILABLE"
	default:
		return "INTERNAL_ERROR"
	}
}

// canJoin enforces the room permission rules:
//
//	user:{id}    only your own
//	type:{t}     only your own type (admins may watch any)
//	booking:{id} booking parties and admins
//	trip:{id}    booking parties and admins (customers track their parcel)
func (c *Client) canJoin(ctx context.Context, room string) bool {
	if c.identity.IsAdmin() {
		return true
	}
	switch {
	case strings.HasPrefix(room, "user:"):
		return room == RoomUser(c.identity.UserID)
	case strings.HasPrefix(room, "type:"):
		return room == RoomType(c.identity.UserType)
	case strings.HasPrefix(room, "booking:"), strings.HasPrefix(room, "trip:"):
		bookingID := room[strings.Index(room, ":")+1:]
		b, err := c.server.bookings.GetByID(ctx, bookingID)
		if err != nil {
			return false
		}
		return b.CustomerID == c.identity.UserID || b.AssignedDriverID() == c.identity.UserID
	}
	return false
}

func (c *Client) handleJoin(ctx context.Context, raw json.RawMessage) {
	var req RoomRequest
	if !decode(raw, &req) || req.Room == "" {
		c.sendError("VALIDATION_ERROR", "join_room requires a room")
		return
	}
	if !c.canJoin(ctx, req.Room) {
		c.sendError("FORBIDDEN", "not allowed to join "+req.Room)
		return
	}
	c.server.hub.Join(c, req.Room)
	c.TrySend(NewFrame(EvRoomJoined, RoomRequest{Room: req.Room}))
}

func (c *Client) handleLeave(raw json.RawMessage) {
	var req RoomRequest
	if !decode(raw, &req) || req.Room == "" {
		c.sendError("VALIDATION_ERROR", "leave_room requires a room")
		return
	}
	c.server.hub.Leave(c, req.Room)
	c.TrySend(NewFrame(EvRoomLeft, RoomRequest{Room: req.Room}))
}

// handleDriverStatus is the explicit go-online/go-offline intent; this is
// the only session path that flips isOnline.
func (c *Client) handleDriverStatus(ctx context.Context, raw json.RawMessage) {
	if c.identity.UserType != model.TypeDriver {
		c.sendError("FORBIDDEN", "driver_status_update is driver-only")
		return
	}
	var req StatusRequest
	if !decode(raw, &req) {
		c.sendError("VALIDATION_ERROR", "driver_status_update payload invalid")
		return
	}

	if req.IsOnline {
		driver, err := c.server.users.GetDriver(ctx, c.identity.UserID)
		if err != nil {
			c.sendError("DRIVER_NOT_FOUND", "driver profile not found")
			return
		}
		if !driver.Driver.VerificationStatus.IsEligible() {
			c.sendError("FORBIDDEN", "documents must be verified before going online")
			return
		}
		if check, ok := c.server.area.AllowGoOnline(driver.Driver.CurrentLocation); !ok {
			c.sendError("SERVICE_AREA_VIOLATION", check.Message)
			return
		}
	}

	if err := c.server.users.SetDriverStatus(ctx, c.identity.UserID, req.IsOnline, req.IsAvailable); err != nil {
		c.sendError("INTERNAL_ERROR", "status update failed")
		return
	}
	c.server.hub.DriverStatusChanged(c.identity.UserID, req.IsOnline, req.IsAvailable)
}

// handleLocation persists the fix (monotonic; stale fixes are dropped),
// mirrors it to the trip room and follows up with a rolling ETA toward the
// trip's current target.
func (c *Client) handleLocation(ctx context.Context, raw json.RawMessage) {
	if c.identity.UserType != model.TypeDriver {
		c.sendError("FORBIDDEN", "update_location is driver-only")
		return
	}
	var req LocationUpdate
	if !decode(raw, &req) {
		c.sendError("VALIDATION_ERROR", "update_location payload invalid")
		return
	}
	if req.Latitude < -90 || req.Latitude > 90 || req.Longitude < -180 || req.Longitude > 180 {
		c.sendError("VALIDATION_ERROR", "coordinates out of range")
		return
	}

	loc := &model.DriverLocation{
		DriverID:   c.identity.UserID,
		Point:      model.GeoPoint{Latitude: req.Latitude, Longitude: req.Longitude},
		AccuracyM:  req.AccuracyM,
		SpeedKmph:  req.SpeedKmph,
		BearingDeg: req.BearingDeg,
		Timestamp:  req.Timestamp,
	}
	if req.TripID != "" {
		loc.CurrentTripID = &req.TripID
	}

	applied, err := c.server.locations.Upsert(ctx, loc)
	if err != nil {
		c.sendError("INTERNAL_ERROR", "location write failed")
		return
	}
	if !applied {
		// Out-of-order fix; receivers already saw a newer one.
		return
	}
	if err := c.server.users.UpdateDriverLocation(ctx, c.identity.UserID, loc.Point); err != nil {
		log.Printf("[session] WARNING: mirror location %s: %v", c.identity.UserID, err)
	}

	if req.TripID != "" {
		rooms := []string{RoomTrip(req.TripID), RoomBooking(req.TripID)}
		c.server.hub.EmitExcept(NewFrame(EvLocationOut, loc), c, rooms...)
		if eta, ok := c.tripEta(ctx, req.TripID, loc.Point); ok {
			c.server.hub.EmitExcept(NewFrame(EvEtaOut, eta), c, rooms...)
		}
	}
}

// tripEta estimates minutes to the trip's current target: the pickup until
// the parcel is collected, the dropoff afterwards.
func (c *Client) tripEta(ctx context.Context, tripID string, from model.GeoPoint) (EtaPayload, bool) {
	booking, err := c.server.bookings.GetByID(ctx, tripID)
	if err != nil || model.IsTerminal(booking.Status) {
		return EtaPayload{}, false
	}

	target, to := "pickup", booking.Pickup.Point
	switch booking.Status {
	case model.StatusPickedUp, model.StatusInTransit, model.StatusAtDropoff:
		target, to = "dropoff", booking.Dropoff.Point
	}
	return EtaPayload{
		BookingID:  tripID,
		Target:     target,
		EtaMinutes: geo.EstimateTimeMinutes(from, to),
	}, true
}

func (c *Client) handleSubscribe(ctx context.Context, raw json.RawMessage) {
	var req TrackRequest
	if !decode(raw, &req) || req.BookingID == "" {
		c.sendError("VALIDATION_ERROR", "subscribe_tracking requires a booking_id")
		return
	}
	room := RoomTrip(req.BookingID)
	if !c.canJoin(ctx, room) {
		c.sendError("FORBIDDEN", "not allowed to track "+req.BookingID)
		return
	}
	c.server.hub.Join(c, room)

	// Replay: current booking state plus the driver's last known fix.
	booking, err := c.server.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return
	}
	c.TrySend(NewFrame(EvBookingStatus, booking))
	if driverID := booking.AssignedDriverID(); driverID != "" {
		if loc, err := c.server.locations.Get(ctx, driverID); err == nil {
			c.TrySend(NewFrame(EvLocationOut, loc))
		}
	}
}

func (c *Client) handleUnsubscribe(raw json.RawMessage) {
	var req TrackRequest
	if !decode(raw, &req) || req.BookingID == "" {
		return
	}
	c.server.hub.Leave(c, RoomTrip(req.BookingID))
}

func (c *Client) handleChat(ctx context.Context, raw json.RawMessage) {
	var req ChatRequest
	if !decode(raw, &req) || req.BookingID == "" {
		c.sendError("VALIDATION_ERROR", "send_message requires a booking_id")
		return
	}
	body := strings.TrimSpace(req.Body)
	if body == "" || len(body) > maxChatLen {
		c.sendError("VALIDATION_ERROR", "message must be 1..500 characters")
		return
	}
	room := RoomBooking(req.BookingID)
	if !c.server.hub.InRoom(c, room) && !c.canJoin(ctx, room) {
		c.sendError("FORBIDDEN", "not a party of this booking")
		return
	}

	msg, err := c.server.messages.InsertChat(ctx, &model.ChatMessage{
		BookingID: req.BookingID,
		SenderID:  c.identity.UserID,
		Body:      body,
	})
	if err != nil {
		c.sendError("INTERNAL_ERROR", "message not delivered")
		return
	}
	c.server.hub.Emit(NewFrame(EvChatOut, msg), room)
}

func (c *Client) handleTyping(raw json.RawMessage, isTyping bool) {
	var req TypingRequest
	if !decode(raw, &req) || req.BookingID == "" {
		return
	}
	room := RoomBooking(req.BookingID)
	if !c.server.hub.InRoom(c, room) {
		return
	}
	c.server.hub.EmitExcept(NewFrame(EvTypingOut, TypingPayload{
		BookingID: req.BookingID,
		UserID:    c.identity.UserID,
		IsTyping:  isTyping,
	}), c, room)
}

// handlePresence refreshes the caller's presence TTL record and fans the
// state out on its type room plus the trip room when one is named.
func (c *Client) handlePresence(ctx context.Context, raw json.RawMessage) {
	var req PresenceRequest
	if !decode(raw, &req) || req.Status == "" {
		c.sendError("VALIDATION_ERROR", "presence_update requires a status")
		return
	}

	if c.server.presence != nil {
		err := c.server.presence.Update(ctx, service.PresenceRecord{
			UserID:    c.identity.UserID,
			UserType:  string(c.identity.UserType),
			Status:    req.Status,
			BookingID: req.BookingID,
		})
		if err != nil {
			log.Printf("[session] WARNING: presence record %s: %v", c.identity.UserID, err)
		}
	}

	rooms := []string{RoomType(c.identity.UserType)}
	if req.BookingID != "" {
		rooms = append(rooms, RoomTrip(req.BookingID))
	}
	c.server.hub.EmitExcept(NewFrame(EvPresenceOut, PresencePayload{
		UserID:    c.identity.UserID,
		UserType:  string(c.identity.UserType),
		Status:    req.Status,
		BookingID: req.BookingID,
	}), c, rooms...)
}

// handleEmergency persists the alert and broadcasts it to the booking room
// and every connected admin.
func (c *Client) handleEmergency(ctx context.Context, raw json.RawMessage) {
	var req EmergencyRequest
	if !decode(raw, &req) || req.BookingID == "" {
		c.sendError("VALIDATION_ERROR", "emergency_alert requires a booking_id")
		return
	}

	alert := &model.EmergencyAlert{
		BookingID: req.BookingID,
		UserID:    c.identity.UserID,
		Kind:      req.Kind,
		Message:   req.Message,
	}
	if req.Latitude != nil && req.Longitude != nil {
		alert.Location = &model.GeoPoint{Latitude: *req.Latitude, Longitude: *req.Longitude}
	}

	stored, err := c.server.messages.InsertEmergency(ctx, alert)
	if err != nil {
		// The broadcast must go out even when the write fails.
		log.Printf("[session] WARNING: persist emergency %s: %v", req.BookingID, err)
		stored = alert
	}
	c.server.hub.Emit(NewFrame(EvEmergency, stored),
		RoomBooking(req.BookingID), RoomTrip(req.BookingID), RoomType(model.TypeAdmin))
	log.Printf("[session] 🚨 emergency on %s from %s", req.BookingID, c.identity.UserID)
}

// handleTripStatus delegates to the booking core's status update; fan-out
// happens through its events.
func (c *Client) handleTripStatus(ctx context.Context, raw json.RawMessage) {
	if c.server.booking == nil {
		c.sendError("UPSTREAM_UNAVAILABLE", "booking core not available")
		return
	}
	var req TripStatusRequest
	if !decode(raw, &req) || req.BookingID == "" || req.Status == "" {
		c.sendError("VALIDATION_ERROR", "trip_status_update requires booking_id and status")
		return
	}

	updatedBy := c.identity.UserID
	if c.identity.IsAdmin() {
		updatedBy = "admin:" + c.identity.UserID
	}
	_, err := c.server.booking.UpdateStatus(ctx, req.BookingID, model.BookingStatus(req.Status), updatedBy, req.Note)
	if err != nil {
		c.sendError(wireCode(err), err.Error())
		return
	}
}

// handleAccept delegates to the booking core's accept; the race loser gets
// BOOKING_ALREADY_ASSIGNED like on the HTTP path.
func (c *Client) handleAccept(ctx context.Context, raw json.RawMessage) {
	if c.identity.UserType != model.TypeDriver {
		c.sendError("FORBIDDEN", "accept_booking is driver-only")
		return
	}
	if c.server.booking == nil {
		c.sendError("UPSTREAM_UNAVAILABLE", "booking core not available")
		return
	}
	var req AcceptRequest
	if !decode(raw, &req) || req.BookingID == "" {
		c.sendError("VALIDATION_ERROR", "accept_booking requires a booking_id")
		return
	}

	booking, err := c.server.booking.Accept(ctx, req.BookingID, c.identity.UserID)
	if err != nil {
		c.sendError(wireCode(err), err.Error())
		return
	}
	c.server.hub.Join(c, RoomBooking(booking.ID))
}

// handleReject records the refusal and rebroadcasts availability to the
// remaining candidates.
func (c *Client) handleReject(ctx context.Context, raw json.RawMessage) {
	if c.identity.UserType != model.TypeDriver {
		c.sendError("FORBIDDEN", "reject_booking is driver-only")
		return
	}
	if c.server.booking == nil {
		c.sendError("UPSTREAM_UNAVAILABLE", "booking core not available")
		return
	}
	var req RejectRequest
	if !decode(raw, &req) || req.BookingID == "" {
		c.sendError("VALIDATION_ERROR", "reject_booking requires a booking_id")
		return
	}

	booking, err := c.server.booking.Reject(ctx, req.BookingID, c.identity.UserID, req.Reason)
	if err != nil {
		c.sendError(wireCode(err), err.Error())
		return
	}

	if c.server.dispatch != nil && booking.Status == model.StatusPending {
		if _, err := c.server.dispatch.Notify(ctx, booking); err != nil {
			log.Printf("[session] WARNING: rebroadcast %s after reject: %v", booking.ID, err)
		}
	}
}
