// Package main implements a standalone seed script that populates a running
// review service with a small catalog of courses and instructors plus a
// spread of reviews from a handful of students. Everything goes through the
// public HTTP API, so the script works against either store backend.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

// --------------------------------------------------------------------------
// Configuration helpers
// --------------------------------------------------------------------------

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// --------------------------------------------------------------------------
// HTTP helpers
// --------------------------------------------------------------------------

// caller identifies the user the request is sent as.
type caller struct {
	userID string
	role   string
}

var admin = caller{userID: "seed-admin", role: "admin"}

func send(ctx context.Context, method, url string, as caller, body any) (map[string]any, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", as.userID)
	if as.role != "" {
		req.Header.Set("X-User-Role", as.role)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
	}

	var result map[string]any
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Seed data definitions
// --------------------------------------------------------------------------

type courseDef struct {
	subject     string
	catalog     string
	title       string
	description string
	terms       []string
}

func (c courseDef) id() string { return c.subject + c.catalog }

type instructorDef struct {
	firstName   string
	lastName    string
	departments []string
	courses     []courseDef
	id          string // populated after upsert
}

var courses = []courseDef{
	{"COMP", "248", "Object-Oriented Programming I", "Introduction to programming in Java.", []string{"Fall", "Winter", "Summer"}},
	{"COMP", "249", "Object-Oriented Programming II", "Inheritance, exceptions, generics and collections.", []string{"Fall", "Winter"}},
	{"COMP", "352", "Data Structures and Algorithms", "Lists, trees, hashing, sorting and graph algorithms.", []string{"Fall", "Winter"}},
	{"COMP", "346", "Operating Systems", "Processes, scheduling, memory management and concurrency.", []string{"Fall"}},
	{"SOEN", "287", "Web Programming", "Client and server side web development.", []string{"Winter", "Summer"}},
	{"SOEN", "341", "Software Process", "Team software development and methodologies.", []string{"Fall", "Winter"}},
	{"ENGR", "233", "Applied Advanced Calculus", "Vector calculus for engineers.", []string{"Fall", "Winter", "Summer"}},
	{"MATH", "205", "Differential and Integral Calculus II", "Integration techniques and series.", []string{"Fall", "Winter"}},
}

var instructors = []instructorDef{
	{firstName: "Aiman", lastName: "Hanna", departments: []string{"Computer Science"}, courses: []courseDef{courses[0], courses[1], courses[2]}},
	{firstName: "Joey", lastName: "Paquet", departments: []string{"Software Engineering"}, courses: []courseDef{courses[5]}},
	{firstName: "Nora", lastName: "Houari", departments: []string{"Computer Science"}, courses: []courseDef{courses[2], courses[3]}},
	{firstName: "Yuhong", lastName: "Yan", departments: []string{"Software Engineering"}, courses: []courseDef{courses[4]}},
	{firstName: "Emad", lastName: "Shihab", departments: []string{"Software Engineering", "Computer Science"}, courses: []courseDef{courses[5]}},
	{firstName: "Ali", lastName: "Dolatabadi", departments: []string{"Mechanical Engineering"}, courses: []courseDef{courses[6]}},
}

var tagPool = []string{
	"Tough Grader", "Get Ready To Read", "Participation Matters", "Extra Credit",
	"Group Projects", "Amazing Lectures", "Clear Grading Criteria", "Gives Good Feedback",
	"Inspirational", "Lots Of Homework", "Accessible Outside Class", "Lecture Heavy",
}

var comments = []string{
	"Heavy workload but you learn a lot.",
	"Exams are fair if you do the assignments.",
	"Lectures move fast, read ahead.",
	"Labs were the most useful part.",
	"Would take again.",
	"",
}

// --------------------------------------------------------------------------
// main
// --------------------------------------------------------------------------

func main() {
	log.SetFlags(log.Ltime | log.Lmsgprefix)
	log.SetPrefix("[seed] ")

	baseURL := getEnv("REVIEW_URL", "http://localhost:8080") + "/api/v1"
	students := 12
	rng := rand.New(rand.NewSource(42))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	// ---------------------------------------------------------------
	// 1. Courses
	// ---------------------------------------------------------------
	log.Println("Seeding courses...")
	for _, c := range courses {
		_, err := send(ctx, http.MethodPut, baseURL+"/courses/"+c.id(), admin, map[string]any{
			"subject":     c.subject,
			"catalog":     c.catalog,
			"title":       c.title,
			"description": c.description,
			"terms":       c.terms,
		})
		if err != nil {
			log.Fatalf("course %s: %v", c.id(), err)
		}
		log.Printf("  Course: %s %s", c.id(), c.title)
	}

	// ---------------------------------------------------------------
	// 2. Instructors
	// ---------------------------------------------------------------
	log.Println("Seeding instructors...")
	for i := range instructors {
		in := &instructors[i]
		taught := make([]map[string]string, len(in.courses))
		for j, c := range in.courses {
			taught[j] = map[string]string{"subject": c.subject, "catalog": c.catalog}
		}
		result, err := send(ctx, http.MethodPut, baseURL+"/instructors", admin, map[string]any{
			"first_name":  in.firstName,
			"last_name":   in.lastName,
			"departments": in.departments,
			"courses":     taught,
		})
		if err != nil {
			log.Fatalf("instructor %s %s: %v", in.firstName, in.lastName, err)
		}
		if data, ok := result["data"].(map[string]any); ok {
			in.id, _ = data["id"].(string)
		}
		log.Printf("  Instructor: %s %s (id=%s)", in.firstName, in.lastName, in.id)
	}

	// ---------------------------------------------------------------
	// 3. Reviews
	// ---------------------------------------------------------------
	log.Printf("Seeding reviews from %d students...", students)
	created := 0
	for s := 1; s <= students; s++ {
		student := caller{userID: fmt.Sprintf("student-%02d", s)}

		for _, c := range courses {
			if rng.Intn(3) == 0 {
				continue
			}
			payload := map[string]any{
				"difficulty": 1 + rng.Intn(5),
				"experience": 1 + rng.Intn(5),
			}
			if in := instructorOf(c, rng); in != "" {
				payload["instructor_id"] = in
			}
			if _, err := send(ctx, http.MethodPost, baseURL+"/reviews", student, map[string]any{
				"type":      "course",
				"target_id": c.id(),
				"content":   comments[rng.Intn(len(comments))],
				"course":    payload,
			}); err != nil {
				log.Printf("  WARNING: %s review of %s: %v", student.userID, c.id(), err)
				continue
			}
			created++
		}

		for _, in := range instructors {
			if in.id == "" || rng.Intn(2) == 0 {
				continue
			}
			if _, err := send(ctx, http.MethodPost, baseURL+"/reviews", student, map[string]any{
				"type":      "instructor",
				"target_id": in.id,
				"content":   comments[rng.Intn(len(comments))],
				"instructor": map[string]any{
					"difficulty": 1 + rng.Intn(5),
					"rating":     1 + rng.Intn(5),
					"tags":       pickTags(rng),
					"course_id":  in.courses[rng.Intn(len(in.courses))].id(),
				},
			}); err != nil {
				log.Printf("  WARNING: %s review of %s: %v", student.userID, in.id, err)
				continue
			}
			created++
		}
	}

	// ---------------------------------------------------------------
	// 4. Consistent statistics
	// ---------------------------------------------------------------
	for _, typ := range []string{"course", "instructor"} {
		if _, err := send(ctx, http.MethodPost, baseURL+"/admin/stats/recompute", admin, map[string]string{"type": typ}); err != nil {
			log.Printf("  WARNING: recompute %s stats: %v", typ, err)
		}
	}

	log.Printf("Seed complete! Created %d courses, %d instructors and %d reviews.", len(courses), len(instructors), created)
}

// instructorOf returns the ID of a random instructor teaching c, or "".
func instructorOf(c courseDef, rng *rand.Rand) string {
	var ids []string
	for _, in := range instructors {
		for _, tc := range in.courses {
			if tc.id() == c.id() && in.id != "" {
				ids = append(ids, in.id)
			}
		}
	}
	if len(ids) == 0 {
		return ""
	}
	return ids[rng.Intn(len(ids))]
}

// pickTags returns up to three distinct tags.
func pickTags(rng *rand.Rand) []string {
	perm := rng.Perm(len(tagPool))
	n := rng.Intn(4)
	tags := make([]string, n)
	for i := 0; i < n; i++ {
		tags[i] = tagPool[perm[i]]
	}
	return tags
}
