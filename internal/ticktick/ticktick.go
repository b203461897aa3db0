package ticktick

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/vinothpandian/inkdash/internal/logger"
)

// DefaultBaseURL is the TickTick open API endpoint.
const DefaultBaseURL = "https://api.ticktick.com/open/v1"

// Data bundles the open tasks and their projects for the dashboard.
type Data struct {
	Tasks       []Task    `json:"tasks"`
	Projects    []Project `json:"projects"`
	LastUpdated string    `json:"lastUpdated"`
}

type Task struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	IsCompleted  bool     `json:"isCompleted"`
	Priority     int      `json:"priority"`
	DueDate      string   `json:"dueDate,omitempty"`
	StartDate    string   `json:"startDate,omitempty"`
	ProjectID    string   `json:"projectId"`
	ProjectName  string   `json:"projectName,omitempty"`
	Tags         []string `json:"tags"`
	CreatedTime  string   `json:"createdTime"`
	ModifiedTime string   `json:"modifiedTime"`
}

type Project struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color,omitempty"`
	SortOrder int64  `json:"sortOrder"`
}

type apiProject struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Color     string `json:"color"`
	SortOrder int64  `json:"sortOrder"`
	Closed    bool   `json:"closed"`
}

type apiTask struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Priority     int      `json:"priority"`
	Status       int      `json:"status"`
	DueDate      string   `json:"dueDate"`
	StartDate    string   `json:"startDate"`
	ProjectID    string   `json:"projectId"`
	Tags         []string `json:"tags"`
	CreatedTime  string   `json:"createdTime"`
	ModifiedTime string   `json:"modifiedTime"`
}

type projectData struct {
	Tasks []apiTask `json:"tasks"`
}

// Client talks to the TickTick open API with a user-provided access token.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
}

func NewClient() *Client {
	return &Client{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		BaseURL:    DefaultBaseURL,
	}
}

// Fetch returns all incomplete tasks across open projects. A single project
// failing to load is logged and skipped rather than failing the whole fetch.
func (c *Client) Fetch(ctx context.Context, accessToken string) (*Data, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("TickTick access token not configured")
	}

	apiProjects, err := c.fetchProjects(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	var projects []Project
	projectNames := make(map[string]string)
	for _, p := range apiProjects {
		if p.Closed {
			continue
		}
		projects = append(projects, Project{
			ID:        p.ID,
			Name:      p.Name,
			Color:     p.Color,
			SortOrder: p.SortOrder,
		})
		projectNames[p.ID] = p.Name
	}

	var tasks []Task
	for _, project := range projects {
		data, err := c.fetchProjectData(ctx, accessToken, project.ID)
		if err != nil {
			logger.Warn("failed to fetch TickTick project", "project", project.Name, "error", err)
			continue
		}

		for _, t := range data.Tasks {
			// status 0 = not completed
			if t.Status != 0 {
				continue
			}
			title := t.Title
			if title == "" {
				title = t.Content
			}
			if title == "" {
				title = "Untitled Task"
			}
			tasks = append(tasks, Task{
				ID:           t.ID,
				Title:        title,
				Priority:     t.Priority,
				DueDate:      t.DueDate,
				StartDate:    t.StartDate,
				ProjectID:    t.ProjectID,
				ProjectName:  projectNames[t.ProjectID],
				Tags:         t.Tags,
				CreatedTime:  t.CreatedTime,
				ModifiedTime: t.ModifiedTime,
			})
		}
	}

	return &Data{
		Tasks:       tasks,
		Projects:    projects,
		LastUpdated: time.Now().Format(time.RFC3339),
	}, nil
}

func (c *Client) fetchProjects(ctx context.Context, accessToken string) ([]apiProject, error) {
	var projects []apiProject
	if err := c.get(ctx, accessToken, "/project", &projects); err != nil {
		return nil, fmt.Errorf("failed to fetch TickTick projects: %w", err)
	}
	return projects, nil
}

func (c *Client) fetchProjectData(ctx context.Context, accessToken, projectID string) (*projectData, error) {
	var data projectData
	if err := c.get(ctx, accessToken, "/project/"+projectID+"/data", &data); err != nil {
		return nil, err
	}
	return &data, nil
}

func (c *Client) get(ctx context.Context, accessToken, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("TickTick API request failed: %w", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			logger.Warn("Failed to close response body", "error", closeErr)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("TickTick API error: %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse TickTick response: %w", err)
	}

	return nil
}
