package integration

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v3"
)

const pushKey = "integration-key"

func TestPublishThenBrowseThenDownload(t *testing.T) {
	s := newStack(t, pushKey)

	nupkg := makeNupkg(t, "Contoso.Utils", "1.2.3", "utility helpers")

	req := httptest.NewRequest("PUT", "http://localhost:5000/api/v2/package", bytes.NewReader(nupkg))
	req.Header.Set("X-NuGet-ApiKey", pushKey)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("publish request error: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("publish expected 201, got %d (%s)", resp.StatusCode, string(body))
	}

	// 版本列表按小写返回。
	resp, err = s.app.Test(httptest.NewRequest("GET", "http://localhost:5000/v3/package/contoso.utils/index.json", nil))
	if err != nil {
		t.Fatalf("version list error: %v", err)
	}
	var versions struct {
		Versions []string `json:"versions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&versions); err != nil {
		t.Fatalf("decode versions: %v", err)
	}
	if len(versions.Versions) != 1 || versions.Versions[0] != "1.2.3" {
		t.Fatalf("version list mismatch: %v", versions.Versions)
	}

	// 搜索命中描述与 ID。
	resp, err = s.app.Test(httptest.NewRequest("GET", "http://localhost:5000/v3/search?q=utility", nil))
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	var search struct {
		TotalHits int `json:"totalHits"`
		Data      []struct {
			ID      string `json:"id"`
			Version string `json:"version"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if search.TotalHits != 1 || len(search.Data) != 1 || search.Data[0].ID != "Contoso.Utils" {
		t.Fatalf("search mismatch: %+v", search)
	}

	// 注册文档始终是单页。
	resp, err = s.app.Test(httptest.NewRequest("GET", "http://localhost:5000/v3/registration/contoso.utils/index.json", nil))
	if err != nil {
		t.Fatalf("registration error: %v", err)
	}
	var reg struct {
		Count int `json:"count"`
		Items []struct {
			Lower string `json:"lower"`
			Upper string `json:"upper"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		t.Fatalf("decode registration: %v", err)
	}
	if reg.Count != 1 || reg.Items[0].Lower != "1.2.3" || reg.Items[0].Upper != "1.2.3" {
		t.Fatalf("registration mismatch: %+v", reg)
	}

	// 下载路径全小写，映射回原始大小写的存储目录。
	url := "http://localhost:5000/v3/package/contoso.utils/1.2.3/contoso.utils.1.2.3.nupkg"
	resp, err = s.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("download error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("download expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, nupkg) {
		t.Fatalf("downloaded bytes differ from uploaded package")
	}
}

func TestPublishedIconServedWithFallback(t *testing.T) {
	s := newStack(t, pushKey)

	iconBytes := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	nupkg := buildNupkgWithIcon(t, "Branded.Pkg", "1.0.0", iconBytes)

	req := httptest.NewRequest("PUT", "http://localhost:5000/api/v2/package", bytes.NewReader(nupkg))
	req.Header.Set("X-NuGet-ApiKey", pushKey)
	resp, err := s.app.Test(req)
	if err != nil {
		t.Fatalf("publish request error: %v", err)
	}
	if resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("publish expected 201, got %d", resp.StatusCode)
	}

	resp, err = s.app.Test(httptest.NewRequest("GET", "http://localhost:5000/v3/package/branded.pkg/1.0.0/icon", nil))
	if err != nil {
		t.Fatalf("icon request error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("icon expected 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("icon content type mismatch: %s", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Equal(body, iconBytes) {
		t.Fatalf("icon bytes mismatch")
	}

	// 发布一个没有图标的新版本后，请求它的图标应回退到镜像里已有的最新图标。
	plain := makeNupkg(t, "Branded.Pkg", "1.1.0", "no icon this time")
	req = httptest.NewRequest("PUT", "http://localhost:5000/api/v2/package", bytes.NewReader(plain))
	req.Header.Set("X-NuGet-ApiKey", pushKey)
	if resp, err = s.app.Test(req); err != nil || resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("publish 1.1.0 failed: err=%v status=%d", err, resp.StatusCode)
	}

	resp, err = s.app.Test(httptest.NewRequest("GET", "http://localhost:5000/v3/package/branded.pkg/1.1.0/icon", nil))
	if err != nil {
		t.Fatalf("icon fallback error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("icon fallback expected 200, got %d", resp.StatusCode)
	}
}

func TestUnlistedVersionStaysDownloadable(t *testing.T) {
	s := newStack(t, pushKey)

	nupkg := makeNupkg(t, "Fading.Pkg", "1.0.0", "soon unlisted")
	req := httptest.NewRequest("PUT", "http://localhost:5000/api/v2/package", bytes.NewReader(nupkg))
	req.Header.Set("X-NuGet-ApiKey", pushKey)
	if resp, err := s.app.Test(req); err != nil || resp.StatusCode != fiber.StatusCreated {
		t.Fatalf("publish failed: err=%v", err)
	}

	req = httptest.NewRequest("DELETE", "http://localhost:5000/api/v2/package/fading.pkg/1.0.0", nil)
	req.Header.Set("X-NuGet-ApiKey", pushKey)
	resp, err := s.app.Test(req)
	if err != nil || resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unlist failed: err=%v status=%d", err, resp.StatusCode)
	}

	// 搜索不再显示，但直连下载仍可用。
	resp, err = s.app.Test(httptest.NewRequest("GET", "http://localhost:5000/v3/search?q=fading", nil))
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	var search struct {
		TotalHits int `json:"totalHits"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&search); err != nil {
		t.Fatalf("decode search: %v", err)
	}
	if search.TotalHits != 0 {
		t.Fatalf("unlisted version should not appear in search, totalHits=%d", search.TotalHits)
	}

	url := "http://localhost:5000/v3/package/fading.pkg/1.0.0/fading.pkg.1.0.0.nupkg"
	resp, err = s.app.Test(httptest.NewRequest("GET", url, nil))
	if err != nil {
		t.Fatalf("download error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unlisted download expected 200, got %d", resp.StatusCode)
	}
}

func buildNupkgWithIcon(t *testing.T, id, version string, icon []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	manifest := fmt.Sprintf(`<?xml version="1.0"?>
<package>
  <metadata>
    <id>%s</id>
    <version>%s</version>
    <description>with icon</description>
    <icon>images/icon.png</icon>
  </metadata>
</package>`, id, version)

	f, err := w.Create(id + ".nuspec")
	if err != nil {
		t.Fatalf("zip create error: %v", err)
	}
	if _, err := f.Write([]byte(manifest)); err != nil {
		t.Fatalf("zip write error: %v", err)
	}

	f, err = w.Create("images/icon.png")
	if err != nil {
		t.Fatalf("zip create error: %v", err)
	}
	if _, err := f.Write(icon); err != nil {
		t.Fatalf("zip write error: %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("zip close error: %v", err)
	}
	return buf.Bytes()
}
