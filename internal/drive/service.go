package drive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
)

const (
	defaultAPIBase    = "https://www.googleapis.com/drive/v3"
	defaultUploadBase = "https://www.googleapis.com/upload/drive/v3"

	folderMimeType = "application/vnd.google-apps.folder"

	fileFields = "id,name,mimeType,size,createdTime,modifiedTime,webViewLink,parents"
)

// Scopes requested for the Drive OAuth token.
var Scopes = []string{
	"https://www.googleapis.com/auth/drive.file",
	"https://www.googleapis.com/auth/drive.readonly",
	"https://www.googleapis.com/auth/drive.metadata.readonly",
}

var (
	// ErrAuthenticationRequired is returned when no usable OAuth token is
	// available. The token must be obtained by an external flow and placed
	// at the configured token path.
	ErrAuthenticationRequired = errors.New("google drive authentication required")

	// ErrUpstream wraps any failure reported by the Drive API.
	ErrUpstream = errors.New("drive upstream error")

	// ErrNotFound is returned when the Drive API reports a missing file.
	ErrNotFound = errors.New("drive file not found")
)

// File describes a Drive file or folder.
type File struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	MimeType     string   `json:"mimeType,omitempty"`
	Size         string   `json:"size,omitempty"`
	CreatedTime  string   `json:"createdTime,omitempty"`
	ModifiedTime string   `json:"modifiedTime,omitempty"`
	WebViewLink  string   `json:"webViewLink,omitempty"`
	Parents      []string `json:"parents,omitempty"`
	Type         string   `json:"type"`
}

// Permission describes a grant on a Drive file.
type Permission struct {
	ID           string `json:"id"`
	EmailAddress string `json:"emailAddress,omitempty"`
	Role         string `json:"role"`
}

// CustomerFolder is the folder structure created for one customer.
type CustomerFolder struct {
	CustomerFolder File            `json:"customerFolder"`
	Subfolders     map[string]File `json:"subfolders"`
	CustomerName   string          `json:"customerName"`
	CustomerEmail  string          `json:"customerEmail"`
}

// Service wraps the Google Drive v3 REST API behind an OAuth-authenticated
// HTTP client. The token source is built lazily on first use and shared
// process-wide; concurrent initializations collapse into one.
type Service struct {
	credentialsPath string
	tokenPath       string

	apiBase    string
	uploadBase string

	mu     sync.Mutex
	client *http.Client
	sf     singleflight.Group
}

// NewService creates a Drive service reading OAuth material from the given
// credentials and token files.
func NewService(credentialsPath, tokenPath string) *Service {
	return &Service{
		credentialsPath: credentialsPath,
		tokenPath:       tokenPath,
		apiBase:         defaultAPIBase,
		uploadBase:      defaultUploadBase,
	}
}

// Authenticate builds the authenticated client now instead of on first use.
func (s *Service) Authenticate(ctx context.Context) error {
	_, err := s.httpClient(ctx)
	return err
}

// Authenticated reports whether an authenticated client has been built.
func (s *Service) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client != nil
}

// httpClient returns the cached authenticated client, building it on first
// use. The singleflight group deduplicates concurrent builds so at most one
// token load/refresh round-trip is in flight.
func (s *Service) httpClient(ctx context.Context) (*http.Client, error) {
	s.mu.Lock()
	if s.client != nil {
		client := s.client
		s.mu.Unlock()
		return client, nil
	}
	s.mu.Unlock()

	v, err, _ := s.sf.Do("authenticate", func() (interface{}, error) {
		conf, err := s.loadOAuthConfig()
		if err != nil {
			return nil, err
		}
		tok, err := s.loadToken()
		if err != nil {
			return nil, err
		}

		// ReuseTokenSource serializes refreshes; the wrapping source
		// persists each refreshed token back to disk.
		base := conf.TokenSource(context.Background(), tok)
		ts := &persistingTokenSource{path: s.tokenPath, src: base, last: tok}
		client := oauth2.NewClient(context.Background(), ts)

		s.mu.Lock()
		s.client = client
		s.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*http.Client), nil
}

// reset drops the cached client so the next call rebuilds it. Called when
// the API reports an authentication failure.
func (s *Service) reset() {
	s.mu.Lock()
	s.client = nil
	s.mu.Unlock()
}

func (s *Service) loadOAuthConfig() (*oauth2.Config, error) {
	b, err := os.ReadFile(s.credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrAuthenticationRequired, s.credentialsPath, err)
	}
	conf, err := google.ConfigFromJSON(b, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing client secrets: %v", ErrAuthenticationRequired, err)
	}
	return conf, nil
}

func (s *Service) loadToken() (*oauth2.Token, error) {
	b, err := os.ReadFile(s.tokenPath)
	if err != nil {
		return nil, fmt.Errorf("%w: no stored token at %s", ErrAuthenticationRequired, s.tokenPath)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(b, tok); err != nil {
		return nil, fmt.Errorf("%w: parsing stored token: %v", ErrAuthenticationRequired, err)
	}
	return tok, nil
}

// persistingTokenSource writes refreshed tokens back to the token file so
// the next process start does not need a new external flow.
type persistingTokenSource struct {
	path string
	src  oauth2.TokenSource

	mu   sync.Mutex
	last *oauth2.Token
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationRequired, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil || p.last.AccessToken != tok.AccessToken {
		if b, err := json.Marshal(tok); err == nil {
			_ = os.WriteFile(p.path, b, 0600)
		}
		p.last = tok
	}
	return tok, nil
}

// CreateFolder creates a new folder, optionally under a parent.
func (s *Service) CreateFolder(ctx context.Context, name, parentID string) (File, error) {
	metadata := map[string]interface{}{
		"name":     name,
		"mimeType": folderMimeType,
	}
	if parentID != "" {
		metadata["parents"] = []string{parentID}
	}

	var f File
	if err := s.doJSON(ctx, http.MethodPost, s.apiBase+"/files?fields=id,name,webViewLink", metadata, &f); err != nil {
		return File{}, err
	}
	f.Type = "folder"
	return f, nil
}

// UploadContent uploads raw bytes as a new file using a multipart upload.
func (s *Service) UploadContent(ctx context.Context, content []byte, name, folderID, mimeType string) (File, error) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	metadata := map[string]interface{}{"name": name}
	if folderID != "" {
		metadata["parents"] = []string{folderID}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := mw.CreatePart(metaHeader)
	if err != nil {
		return File{}, err
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return File{}, err
	}

	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mimeType)
	mediaPart, err := mw.CreatePart(mediaHeader)
	if err != nil {
		return File{}, err
	}
	if _, err := mediaPart.Write(content); err != nil {
		return File{}, err
	}
	if err := mw.Close(); err != nil {
		return File{}, err
	}

	uploadURL := s.uploadBase + "/files?uploadType=multipart&fields=id,name,size,webViewLink,createdTime,modifiedTime"
	body, err := s.do(ctx, http.MethodPost, uploadURL, &buf, "multipart/related; boundary="+mw.Boundary())
	if err != nil {
		return File{}, err
	}

	var f File
	if err := json.Unmarshal(body, &f); err != nil {
		return File{}, fmt.Errorf("%w: decoding upload response: %v", ErrUpstream, err)
	}
	f.Type = "file"
	return f, nil
}

// DownloadFile fetches a file's content. Google-native documents are
// exported: documents and presentations to PDF, spreadsheets to XLSX,
// unless an explicit export MIME type is given.
func (s *Service) DownloadFile(ctx context.Context, fileID, exportMimeType string) ([]byte, error) {
	var meta struct {
		MimeType string `json:"mimeType"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.apiBase+"/files/"+url.PathEscape(fileID)+"?fields=mimeType", nil, &meta); err != nil {
		return nil, err
	}

	var target string
	switch meta.MimeType {
	case "application/vnd.google-apps.document":
		if exportMimeType == "" {
			exportMimeType = "application/pdf"
		}
		target = s.apiBase + "/files/" + url.PathEscape(fileID) + "/export?mimeType=" + url.QueryEscape(exportMimeType)
	case "application/vnd.google-apps.spreadsheet":
		if exportMimeType == "" {
			exportMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		}
		target = s.apiBase + "/files/" + url.PathEscape(fileID) + "/export?mimeType=" + url.QueryEscape(exportMimeType)
	case "application/vnd.google-apps.presentation":
		if exportMimeType == "" {
			exportMimeType = "application/pdf"
		}
		target = s.apiBase + "/files/" + url.PathEscape(fileID) + "/export?mimeType=" + url.QueryEscape(exportMimeType)
	default:
		target = s.apiBase + "/files/" + url.PathEscape(fileID) + "?alt=media"
	}

	return s.do(ctx, http.MethodGet, target, nil, "")
}

// ListFiles lists files, optionally scoped to a folder and narrowed by an
// extra Drive query expression.
func (s *Service) ListFiles(ctx context.Context, folderID, query string, pageSize int) ([]File, error) {
	base := "trashed=false"
	if folderID != "" {
		base = fmt.Sprintf("'%s' in parents", folderID)
	}
	if query != "" {
		base = base + " and " + query
	}
	return s.listQuery(ctx, base, pageSize)
}

// SearchFiles finds files whose name contains the query string.
func (s *Service) SearchFiles(ctx context.Context, query string, pageSize int) ([]File, error) {
	escaped := strings.ReplaceAll(query, "'", `\'`)
	return s.listQuery(ctx, fmt.Sprintf("name contains '%s' and trashed=false", escaped), pageSize)
}

func (s *Service) listQuery(ctx context.Context, q string, pageSize int) ([]File, error) {
	if pageSize <= 0 {
		pageSize = 100
	}
	params := url.Values{}
	params.Set("q", q)
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("fields", "nextPageToken, files("+fileFields+")")

	var result struct {
		Files []File `json:"files"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.apiBase+"/files?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}
	for i := range result.Files {
		if result.Files[i].MimeType == folderMimeType {
			result.Files[i].Type = "folder"
		} else {
			result.Files[i].Type = "file"
		}
	}
	return result.Files, nil
}

// DeleteFile permanently deletes a file.
func (s *Service) DeleteFile(ctx context.Context, fileID string) error {
	_, err := s.do(ctx, http.MethodDelete, s.apiBase+"/files/"+url.PathEscape(fileID), nil, "")
	return err
}

// ShareFile grants a user access to a file.
func (s *Service) ShareFile(ctx context.Context, fileID, email, role string, notify bool) (Permission, error) {
	if role == "" {
		role = "reader"
	}
	body := map[string]string{
		"type":         "user",
		"role":         role,
		"emailAddress": email,
	}
	target := fmt.Sprintf("%s/files/%s/permissions?sendNotificationEmail=%t&fields=id,emailAddress,role",
		s.apiBase, url.PathEscape(fileID), notify)

	var perm Permission
	if err := s.doJSON(ctx, http.MethodPost, target, body, &perm); err != nil {
		return Permission{}, err
	}
	return perm, nil
}

// CreateSharedLink makes the file accessible to anyone with the link and
// returns its web view URL.
func (s *Service) CreateSharedLink(ctx context.Context, fileID, role string) (string, error) {
	if role == "" {
		role = "reader"
	}
	body := map[string]string{"type": "anyone", "role": role}
	if err := s.doJSON(ctx, http.MethodPost, s.apiBase+"/files/"+url.PathEscape(fileID)+"/permissions", body, nil); err != nil {
		return "", err
	}

	var f struct {
		WebViewLink string `json:"webViewLink"`
	}
	if err := s.doJSON(ctx, http.MethodGet, s.apiBase+"/files/"+url.PathEscape(fileID)+"?fields=webViewLink", nil, &f); err != nil {
		return "", err
	}
	return f.WebViewLink, nil
}

// Subfolder names created under every customer folder.
var customerSubfolders = map[string]string{
	"documents":      "Documents",
	"contracts":      "Contracts",
	"tickets":        "Support Tickets",
	"communications": "Communications",
}

// CreateCustomerFolder builds the support folder structure for a customer.
func (s *Service) CreateCustomerFolder(ctx context.Context, customerName, customerEmail string) (CustomerFolder, error) {
	root, err := s.CreateFolder(ctx, "Customer Support - "+customerName, "")
	if err != nil {
		return CustomerFolder{}, err
	}

	subfolders := make(map[string]File, len(customerSubfolders))
	for key, name := range customerSubfolders {
		folder, err := s.CreateFolder(ctx, name, root.ID)
		if err != nil {
			return CustomerFolder{}, err
		}
		subfolders[key] = folder
	}

	return CustomerFolder{
		CustomerFolder: root,
		Subfolders:     subfolders,
		CustomerName:   customerName,
		CustomerEmail:  customerEmail,
	}, nil
}

// UploadCustomerDocument uploads a document into the customer's subfolder
// of the given type, creating the subfolder when missing.
func (s *Service) UploadCustomerDocument(ctx context.Context, customerFolderID string, content []byte, name, documentType string) (File, error) {
	if documentType == "" {
		documentType = "documents"
	}

	entries, err := s.ListFiles(ctx, customerFolderID, "", 0)
	if err != nil {
		return File{}, err
	}

	var targetID string
	for _, entry := range entries {
		if entry.Type == "folder" && strings.EqualFold(entry.Name, documentType) {
			targetID = entry.ID
			break
		}
	}
	if targetID == "" {
		folder, err := s.CreateFolder(ctx, titleCase(documentType), customerFolderID)
		if err != nil {
			return File{}, err
		}
		targetID = folder.ID
	}

	return s.UploadContent(ctx, content, name, targetID, "")
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

// CustomerDocuments lists a customer's documents grouped by subfolder name.
func (s *Service) CustomerDocuments(ctx context.Context, customerFolderID string) (map[string][]File, error) {
	entries, err := s.ListFiles(ctx, customerFolderID, "", 0)
	if err != nil {
		return nil, err
	}

	documents := make(map[string][]File)
	for _, entry := range entries {
		if entry.Type != "folder" {
			continue
		}
		files, err := s.ListFiles(ctx, entry.ID, "", 0)
		if err != nil {
			return nil, err
		}
		documents[strings.ToLower(entry.Name)] = files
	}
	return documents, nil
}

func (s *Service) doJSON(ctx context.Context, method, target string, payload, out interface{}) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
		contentType = "application/json"
	}

	respBody, err := s.do(ctx, method, target, body, contentType)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", ErrUpstream, err)
	}
	return nil
}

func (s *Service) do(ctx context.Context, method, target string, body io.Reader, contentType string) ([]byte, error) {
	client, err := s.httpClient(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		// The cached credential may be revoked; rebuild on next call.
		s.reset()
		return nil, fmt.Errorf("%w: drive returned status %d", ErrAuthenticationRequired, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrNotFound, strings.TrimSpace(string(respBody)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return respBody, nil
}
