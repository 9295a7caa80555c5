package packages

import (
	"archive/zip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"noderig/internal/message"
	"noderig/pkg/logging"
)

// AppStoreProcess is the process that accepts and installs packages.
const AppStoreProcess = "main:app_store:sys"

const appStoreResponseWait = 15 * time.Second

// ErrNoPkgDir is returned when a package directory has no pkg/ subdirectory.
var ErrNoPkgDir = errors.New("required `pkg/` dir not found")

// Metadata is the subset of pkg/metadata.json needed to identify a package.
type Metadata struct {
	Package   string `json:"package"`
	Publisher string `json:"publisher"`
}

// ID is the package identifier, package:publisher.
func (m Metadata) ID() string {
	return m.Package + ":" + m.Publisher
}

type packageID struct {
	PackageName   string `json:"package_name"`
	PublisherNode string `json:"publisher_node"`
}

type newPackageRequest struct {
	NewPackage struct {
		Package packageID `json:"package"`
		Mirror  bool      `json:"mirror"`
	} `json:"NewPackage"`
}

type installRequest struct {
	Install packageID `json:"Install"`
}

// AppStorePublisher zips a package and installs it through the node's app
// store.
type AppStorePublisher struct {
	Client *message.Client
}

// PublishAndInstall packages packageDir/pkg into a zip under
// packageDir/target, registers it with the app store on url and installs it.
func (p *AppStorePublisher) PublishAndInstall(ctx context.Context, packageDir, url string) error {
	pkgDir := filepath.Join(packageDir, "pkg")
	if info, err := os.Stat(pkgDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w within given input dir %s. Please re-run targeting a package", ErrNoPkgDir, packageDir)
	}

	meta, err := ReadMetadata(pkgDir)
	if err != nil {
		return err
	}
	logging.Info("Publisher", "%s", meta.ID())

	targetDir := filepath.Join(packageDir, "target")
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", targetDir, err)
	}
	zipPath := filepath.Join(targetDir, meta.ID()+".zip")
	if err := ZipDirectory(pkgDir, zipPath); err != nil {
		return err
	}

	id := packageID{PackageName: meta.Package, PublisherNode: meta.Publisher}

	var newPkg newPackageRequest
	newPkg.NewPackage.Package = id
	newPkg.NewPackage.Mirror = true
	if err := p.request(ctx, url, newPkg, zipPath, "NewPackageResponse"); err != nil {
		return fmt.Errorf("failed to add package: %w", err)
	}

	if err := p.request(ctx, url, installRequest{Install: id}, "", "InstallResponse"); err != nil {
		return fmt.Errorf("failed to start package: %w", err)
	}

	logging.Info("Publisher", "Successfully installed package %s on node at %s", meta.ID(), url)
	return nil
}

// request sends body to the app store and requires reply[field] == "Success".
func (p *AppStorePublisher) request(ctx context.Context, url string, body any, bytesPath, field string) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := p.Client.Call(ctx, url, message.Request{
		Process:      AppStoreProcess,
		ResponseWait: appStoreResponseWait,
		Body:         string(encoded),
		BytesPath:    bytesPath,
	})
	if err != nil {
		return err
	}

	var reply map[string]json.RawMessage
	if err := json.Unmarshal([]byte(resp.Body), &reply); err != nil {
		return fmt.Errorf("got response from node: %s", resp.Body)
	}
	var status string
	if raw, ok := reply[field]; !ok || json.Unmarshal(raw, &status) != nil || status != "Success" {
		return fmt.Errorf("got response from node: %s", resp.Body)
	}
	return nil
}

// ReadMetadata reads pkgDir/metadata.json.
func ReadMetadata(pkgDir string) (Metadata, error) {
	var meta Metadata
	data, err := os.ReadFile(filepath.Join(pkgDir, "metadata.json"))
	if err != nil {
		return meta, fmt.Errorf("failed to read package metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to parse package metadata: %w", err)
	}
	if meta.Package == "" || meta.Publisher == "" {
		return meta, fmt.Errorf("package metadata in %s must name `package` and `publisher`", pkgDir)
	}
	return meta, nil
}

// ZipDirectory writes every file and subdirectory below dir into an
// uncompressed archive at zipPath.
func ZipDirectory(dir, zipPath string) error {
	out, err := os.Create(zipPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", zipPath, err)
	}
	defer out.Close()

	zw := zip.NewWriter(out)
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil || rel == "." {
			return err
		}
		name := filepath.ToSlash(rel)

		header := &zip.FileHeader{Name: name, Method: zip.Store}
		if d.IsDir() {
			header.Name += "/"
			header.SetMode(fs.ModeDir | 0755)
			_, err := zw.CreateHeader(header)
			return err
		}
		header.SetMode(0755)

		w, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		_, err = io.Copy(w, f)
		return err
	})
	if err != nil {
		zw.Close()
		return fmt.Errorf("failed to zip %s: %w", dir, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to zip %s: %w", dir, err)
	}
	return out.Close()
}
