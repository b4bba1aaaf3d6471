package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eventpass/internal/attendance"
	"eventpass/internal/auth"
	"eventpass/internal/credential"
	"eventpass/internal/metrics"
	"eventpass/internal/queue"
)

// maxScanImage bounds uploaded scan captures.
const maxScanImage = 5 << 20

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) bool

// Deps are the collaborators the HTTP layer is built from. Queue, Metrics and
// Health are optional.
type Deps struct {
	Store   attendance.Store
	Signer  credential.Signer
	Codec   *credential.Codec
	Auth    *auth.Service
	Queue   queue.Queue
	Metrics *metrics.Recorder
	Health  map[string]HealthCheck

	// SecureCookie marks the session cookie Secure.
	SecureCookie bool
}

// Handler serves the eventpass API.
type Handler struct {
	store      attendance.Store
	events     *attendance.Events
	registrar  *attendance.Registrar
	verifier   *attendance.Verifier
	aggregator *attendance.Aggregator
	codec      *credential.Codec
	auth       *auth.Service
	queue      queue.Queue
	metrics    *metrics.Recorder
	health     map[string]HealthCheck
	secure     bool
}

// New wires the attendance services over d.Store.
func New(d Deps) *Handler {
	codec := d.Codec
	if codec == nil {
		codec = credential.NewCodec(credential.DefaultSize)
	}
	issuer := attendance.NewIssuer(d.Store, d.Signer)
	return &Handler{
		store:      d.Store,
		events:     attendance.NewEvents(d.Store),
		registrar:  attendance.NewRegistrar(d.Store, issuer),
		verifier:   attendance.NewVerifier(d.Store, d.Signer),
		aggregator: attendance.NewAggregator(d.Store),
		codec:      codec,
		auth:       d.Auth,
		queue:      d.Queue,
		metrics:    d.Metrics,
		health:     d.Health,
		secure:     d.SecureCookie,
	}
}

// Routes mounts the API. requireAuth guards staff routes; limitRegister
// guards the public registration route. Either may be nil.
func (h *Handler) Routes(r gin.IRouter, requireAuth, limitRegister gin.HandlerFunc) {
	r.GET("/healthz", h.Healthz)

	api := r.Group("/api/v1")

	coordinators := api.Group("/coordinators")
	coordinators.POST("/register", h.RegisterCoordinator)
	coordinators.POST("/login", h.Login)
	coordinators.GET("/logout", h.Logout)

	api.POST("/teams/event/:eventId", chain(limitRegister, h.RegisterTeam)...)

	staff := api.Group("")
	if requireAuth != nil {
		staff.Use(requireAuth)
	}
	staff.POST("/events", h.CreateEvent)
	staff.GET("/events", h.ListEvents)
	staff.GET("/events/:id", h.GetEvent)

	staff.GET("/teams", h.ListTeams)
	staff.GET("/teams/:id", h.GetTeam)
	staff.GET("/teams/:id/qr", h.TeamQR)

	staff.POST("/attendance/scan/:currentEventId", h.Scan)
	staff.POST("/attendance/scan/:currentEventId/image", h.ScanImage)
	staff.GET("/analytics/:eventId", h.Analytics)
}

func chain(mw gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{mw, h}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{}
	status, label := http.StatusOK, "ok"
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status, label = http.StatusServiceUnavailable, "degraded"
		}
	}
	body["status"] = label
	c.JSON(status, body)
}

// ---------- Coordinators ----------

type coordinatorRequest struct {
	Name        string `json:"name" binding:"required"`
	Email       string `json:"email" binding:"required,email"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	Department  string `json:"department" binding:"required"`
	Year        string `json:"year" binding:"required"`
}

func (h *Handler) RegisterCoordinator(c *gin.Context) {
	var req coordinatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, auth.ErrInvalidCoordinator)
		return
	}
	coord, err := h.auth.Register(c.Request.Context(), auth.Coordinator{
		Name:        req.Name,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
		Department:  req.Department,
		Year:        req.Year,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "coordinator registered successfully", "coordinator": coord})
}

type loginRequest struct {
	Email     string `json:"email" binding:"required"`
	Name      string `json:"name" binding:"required"`
	SecretKey string `json:"secret_key" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, auth.ErrInvalidCoordinator)
		return
	}
	coord, sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Name, req.SecretKey)
	if err != nil {
		writeError(c, err)
		return
	}
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, sess.Token, maxAge, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{
		"message":     "login successful",
		"coordinator": coord,
		"token":       sess.Token,
		"expires_at":  sess.ExpiresAt.Unix(),
	})
}

func (h *Handler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, "", -1, "/", "", h.secure, true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ---------- Events ----------

type eventRequest struct {
	Name        string    `json:"name"`
	Date        time.Time `json:"date"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	ClubName    string    `json:"club_name"`
	EventHead   string    `json:"event_head"`
}

func (h *Handler) CreateEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, attendance.ErrInvalidRequest)
		return
	}
	evt, err := h.events.Create(c.Request.Context(), attendance.EventInput(req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"event": evt})
}

func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.events.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events, "count": len(events)})
}

func (h *Handler) GetEvent(c *gin.Context) {
	evt, teams, err := h.events.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"event": evt, "teams": teams, "teams_count": len(teams)})
}

// ---------- Teams ----------

type teamRequest struct {
	TeamName    string `json:"team_name"`
	LeaderName  string `json:"leader_name"`
	Email       string `json:"email"`
	Department  string `json:"department"`
	Year        string `json:"year"`
	PhoneNumber string `json:"phone_number"`
}

// RegisterTeam creates a team, mints its credential and returns the rendered
// QR inline. Uploading the image is left to the render worker.
func (h *Handler) RegisterTeam(c *gin.Context) {
	var req teamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, attendance.ErrInvalidRequest)
		return
	}
	ctx := c.Request.Context()
	team, err := h.registrar.Register(ctx, c.Param("eventId"), attendance.Registration(req))
	if err != nil {
		writeError(c, err)
		return
	}
	h.metrics.CredentialIssued()

	png, err := h.codec.Encode(credential.Payload{TeamID: team.ID, EventID: team.EventID, Token: team.CredentialToken})
	if err != nil {
		writeError(c, err)
		return
	}
	if h.queue != nil {
		if err := h.queue.Publish(ctx, queue.RenderCredential(team.ID)); err != nil {
			log.Printf("queue render for team %s: %v", team.ID, err)
		}
	}
	c.JSON(http.StatusCreated, gin.H{
		"message":      "team registered successfully",
		"team":         team,
		"qr_buffer":    base64.StdEncoding.EncodeToString(png),
		"qr_file_name": credential.FileName(team.TeamName, team.ID),
	})
}

func (h *Handler) ListTeams(c *gin.Context) {
	teams, err := h.store.ListTeams(c.Request.Context(), c.Query("event_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"teams": teams, "count": len(teams)})
}

func (h *Handler) GetTeam(c *gin.Context) {
	team, err := h.store.GetTeamByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"team": team})
}

// TeamQR re-renders a team's stored credential.
func (h *Handler) TeamQR(c *gin.Context) {
	team, err := h.store.GetTeamByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	if team.CredentialToken == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "team has no credential"})
		return
	}
	png, err := h.codec.Encode(credential.Payload{TeamID: team.ID, EventID: team.EventID, Token: team.CredentialToken})
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+credential.FileName(team.TeamName, team.ID)+`"`)
	c.Data(http.StatusOK, "image/png", png)
}

// ---------- Scanning ----------

// Scan redeems a credential decoded client-side.
func (h *Handler) Scan(c *gin.Context) {
	var req attendance.RedeemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, attendance.ErrInvalidRequest)
		return
	}
	req.ScanEventID = c.Param("currentEventId")
	h.redeem(c, req)
}

// ScanImage decodes a captured image server-side and redeems its content.
func (h *Handler) ScanImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxScanImage)
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read image"})
		return
	}
	start := time.Now()
	p, err := h.codec.Decode(data)
	if err != nil {
		if errors.Is(err, credential.ErrInvalidPayload) {
			err = attendance.ErrInvalidRequest
		}
		h.metrics.Redemption(err, time.Since(start))
		writeError(c, err)
		return
	}
	h.redeem(c, attendance.RedeemRequest{
		EventID:     p.EventID,
		TeamID:      p.TeamID,
		Token:       p.Token,
		ScanEventID: c.Param("currentEventId"),
	})
}

func (h *Handler) redeem(c *gin.Context, req attendance.RedeemRequest) {
	start := time.Now()
	team, err := h.verifier.Redeem(c.Request.Context(), req)
	h.metrics.Redemption(err, time.Since(start))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "attendance marked successfully", "team": team})
}

func (h *Handler) Analytics(c *gin.Context) {
	s, err := h.aggregator.Summarize(c.Request.Context(), c.Param("eventId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// ---------- Errors ----------

var errorStatus = []struct {
	err    error
	status int
}{
	{attendance.ErrInvalidRequest, http.StatusBadRequest},
	{attendance.ErrEventMismatch, http.StatusBadRequest},
	{auth.ErrInvalidCoordinator, http.StatusBadRequest},
	{credential.ErrUnreadableImage, http.StatusBadRequest},
	{credential.ErrInvalidPayload, http.StatusBadRequest},
	{attendance.ErrInvalidCredential, http.StatusUnauthorized},
	{auth.ErrUnauthorized, http.StatusUnauthorized},
	{attendance.ErrTeamNotFound, http.StatusNotFound},
	{attendance.ErrEventNotFound, http.StatusNotFound},
	{auth.ErrCoordinatorMissing, http.StatusNotFound},
	{attendance.ErrAlreadyRedeemed, http.StatusConflict},
	{attendance.ErrTeamExists, http.StatusConflict},
	{auth.ErrCoordinatorExists, http.StatusConflict},
}

// writeError reports the matching sentinel's message; anything unknown is
// logged and hidden behind a 500.
func writeError(c *gin.Context, err error) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			c.JSON(e.status, gin.H{"error": e.err.Error()})
			return
		}
	}
	log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}
