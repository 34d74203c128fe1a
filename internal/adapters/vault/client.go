// Package vault adapts the external storage/scoring provider to the
// DocumentStore port. Folder and file operations degrade to synthetic
// fallback descriptors on provider failure; scoring always surfaces
// failure to the caller.
package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"proofengine/internal/domain"
	"proofengine/internal/ports"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// --- provider wire types ---

type folderResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type folderStructureResponse struct {
	ID      string            `json:"id"`
	URL     string            `json:"url"`
	Folders map[string]string `json:"folders"`
}

type fileResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
}

type scoreResponse struct {
	Output struct {
		TotalScore *float64        `json:"total_score"`
		Tags       []string        `json:"tags"`
		Problem    json.RawMessage `json:"problem"`
		Solution   json.RawMessage `json:"solution"`
		Team       json.RawMessage `json:"team"`
		Venture    json.RawMessage `json:"venture"`
	} `json:"output"`
}

type providerError struct {
	Error                string `json:"error"`
	Message              string `json:"message"`
	IsUserActionRequired bool   `json:"is_user_action_required"`
}

// CreateFolderStructure creates the ProofVault root plus the seven category
// folders. Best-effort: on provider failure it returns a clearly-marked
// synthetic structure so onboarding can proceed.
func (c *Client) CreateFolderStructure(ctx context.Context, name string) (*domain.FolderStructure, error) {
	body, _ := json.Marshal(map[string]any{
		"name":    name,
		"folders": domain.VaultCategories,
	})
	var out folderStructureResponse
	if err := c.postJSON(ctx, "/folders/structure", body, &out); err != nil {
		log.Printf("vault: create folder structure %q failed, using local fallback: %v", name, err)
		return fallbackStructure(), nil
	}
	if out.ID == "" || len(out.Folders) == 0 {
		log.Printf("vault: create folder structure %q returned incomplete response, using local fallback", name)
		return fallbackStructure(), nil
	}
	return &domain.FolderStructure{
		RootID:  out.ID,
		RootURL: out.URL,
		Folders: out.Folders,
	}, nil
}

func fallbackStructure() *domain.FolderStructure {
	folders := make(map[string]string, len(domain.VaultCategories))
	for _, cat := range domain.VaultCategories {
		folders[cat] = "local-" + uuid.NewString()
	}
	return &domain.FolderStructure{
		RootID:   "local-" + uuid.NewString(),
		Folders:  folders,
		Fallback: true,
	}
}

// CreateFolder creates a single folder under a parent. Best-effort like
// CreateFolderStructure.
func (c *Client) CreateFolder(ctx context.Context, name, parentFolderID string) (ports.FolderInfo, error) {
	body, _ := json.Marshal(map[string]string{
		"name":      name,
		"parent_id": parentFolderID,
	})
	var out folderResponse
	if err := c.postJSON(ctx, "/folders", body, &out); err != nil {
		log.Printf("vault: create folder %q failed, using local fallback: %v", name, err)
		return ports.FolderInfo{ID: "local-" + uuid.NewString(), Fallback: true}, nil
	}
	return ports.FolderInfo{ID: out.ID, URL: out.URL}, nil
}

// UploadFile stores a file in the given folder. Best-effort: on provider
// failure it returns a fallback descriptor; callers record the failure and
// move on.
func (c *Client) UploadFile(ctx context.Context, data []byte, filename, folderID string, allowShare bool) (ports.FileInfo, error) {
	fields := map[string]string{
		"folder_id":   folderID,
		"allow_share": fmt.Sprintf("%t", allowShare),
	}
	var out fileResponse
	if err := c.postMultipart(ctx, "/files", data, filename, fields, &out); err != nil {
		log.Printf("vault: upload %q to folder %s failed, using local fallback: %v", filename, folderID, err)
		return ports.FileInfo{ID: "local-" + uuid.NewString(), Name: filename, Fallback: true}, nil
	}
	return ports.FileInfo{ID: out.ID, Name: out.Name, URL: out.URL, DownloadURL: out.DownloadURL}, nil
}

// ScorePitchDeck submits the deck for analysis. Unlike the storage calls
// there is no fallback: failures always reach the caller. Provider
// responses flagged user-action-required come back as
// *ports.UserActionRequiredError.
func (c *Client) ScorePitchDeck(ctx context.Context, data []byte, filename string) (domain.ScoringResult, error) {
	var result domain.ScoringResult

	raw, status, err := c.doMultipart(ctx, "/score", data, filename, nil)
	if err != nil {
		return result, fmt.Errorf("scoring request: %w", err)
	}
	if status != http.StatusOK {
		var pe providerError
		if json.Unmarshal(raw, &pe) == nil && pe.IsUserActionRequired {
			msg := pe.Message
			if msg == "" {
				msg = pe.Error
			}
			if msg == "" {
				msg = "the document could not be read; please upload a text-based pitch deck"
			}
			return result, &ports.UserActionRequiredError{Msg: msg}
		}
		return result, fmt.Errorf("scoring API error %d: %s", status, truncate(string(raw), 512))
	}

	var sr scoreResponse
	if err := json.Unmarshal(raw, &sr); err != nil {
		return result, fmt.Errorf("invalid scoring response: %w", err)
	}

	result = domain.ScoringResult{
		TotalScore: sr.Output.TotalScore,
		Tags:       sr.Output.Tags,
		Venture:    sr.Output.Venture,
		Team:       sr.Output.Team,
		Raw:        raw,
		Dimensions: map[string]float64{},
	}
	for name, sub := range map[string]json.RawMessage{
		"problem":  sr.Output.Problem,
		"solution": sr.Output.Solution,
		"team":     sr.Output.Team,
	} {
		if score, ok := dimensionScore(sub); ok {
			result.Dimensions[name] = score
		}
	}
	return result, nil
}

// dimensionScore extracts a numeric sub-score from a provider subtree,
// which is either a bare number or an object with a score field.
func dimensionScore(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}
	var obj struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Score != nil {
		return *obj.Score, true
	}
	return 0, false
}

// --- transport helpers ---

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vault API error %d: %s", resp.StatusCode, truncate(string(respBody), 512))
	}
	return json.Unmarshal(respBody, out)
}

func (c *Client) postMultipart(ctx context.Context, path string, data []byte, filename string, fields map[string]string, out any) error {
	raw, status, err := c.doMultipart(ctx, path, data, filename, fields)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("vault API error %d: %s", status, truncate(string(raw), 512))
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) doMultipart(ctx context.Context, path string, data []byte, filename string, fields map[string]string) ([]byte, int, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return nil, 0, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, 0, err
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, 0, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return respBody, resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
