// Package search 提供组织节点的 Elasticsearch 索引与名称检索。
// 索引由节点服务的 After 钩子异步喂入，属于旁路能力：ES 不可用不影响主流程。
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"treehub/internal/model"
	"treehub/pkg/log"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// NodeDocument 是写入 ES 的节点文档，只保留检索需要的字段。
type NodeDocument struct {
	ID          string `json:"id"`
	TenantID    string `json:"tenantId"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Path        string `json:"path"`
	Enabled     bool   `json:"enabled"`
}

// Indexer 封装 ES 客户端，提供节点的索引、删除与名称检索。
type Indexer struct {
	client *elasticsearch.Client
	index  string
}

// NewIndexer 创建索引器。连接失败直接返回错误，由调用方决定是否降级停用搜索。
func NewIndexer(addresses []string, index string) (*Indexer, error) {
	if index == "" {
		return nil, fmt.Errorf("search index name is required")
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: addresses})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}
	return &Indexer{client: client, index: index}, nil
}

// IndexNode 写入（或覆盖）一个节点文档。文档 ID 为 tenantID:nodeID，天然租户隔离。
func (ix *Indexer) IndexNode(ctx context.Context, node *model.OrgNode) error {
	if node == nil {
		return fmt.Errorf("node is nil")
	}

	doc := NodeDocument{
		ID:          node.ID,
		TenantID:    node.TenantID,
		Name:        node.Name,
		Description: node.Description,
		Path:        node.Path,
		Enabled:     node.Enabled,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	req := esapi.IndexRequest{
		Index:      ix.index,
		DocumentID: docID(node.TenantID, node.ID),
		Body:       bytes.NewReader(body),
		Refresh:    "false",
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index node %s: %s", node.ID, res.String())
	}
	return nil
}

// DeleteNode 删除节点文档。文档不存在按成功处理。
func (ix *Indexer) DeleteNode(ctx context.Context, tenantID, nodeID string) error {
	req := esapi.DeleteRequest{
		Index:      ix.index,
		DocumentID: docID(tenantID, nodeID),
	}
	res, err := req.Do(ctx, ix.client)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete node %s: %s", nodeID, res.String())
	}
	return nil
}

// SearchNodes 按名称/描述做 match 检索，结果限定在指定租户内。
func (ix *Indexer) SearchNodes(ctx context.Context, tenantID, query string, size int) ([]NodeDocument, error) {
	if size <= 0 {
		size = 20
	}

	var body bytes.Buffer
	err := json.NewEncoder(&body).Encode(map[string]interface{}{
		"size": size,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":  query,
							"fields": []string{"name", "description"},
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"tenantId": tenantID},
					},
				},
			},
		},
	})
	if err != nil {
		return nil, err
	}

	res, err := ix.client.Search(
		ix.client.Search.WithContext(ctx),
		ix.client.Search.WithIndex(ix.index),
		ix.client.Search.WithBody(&body),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search nodes: %s", res.String())
	}

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source NodeDocument `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, err
	}

	docs := make([]NodeDocument, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return docs, nil
}

// IndexNodeAsync 供 After 钩子使用：后台写索引，失败只告警。
func (ix *Indexer) IndexNodeAsync(node *model.OrgNode) {
	if node == nil {
		return
	}
	snapshot := *node
	go func() {
		if err := ix.IndexNode(context.Background(), &snapshot); err != nil {
			log.Warnf("Indexer: failed to index node %s: %v", snapshot.ID, err)
		}
	}()
}

// DeleteNodesAsync 供删除钩子使用：后台摘除索引文档，失败只告警。
func (ix *Indexer) DeleteNodesAsync(tenantID string, ids []string) {
	go func() {
		for _, id := range ids {
			if err := ix.DeleteNode(context.Background(), tenantID, id); err != nil {
				log.Warnf("Indexer: failed to delete node %s from index: %v", id, err)
			}
		}
	}()
}

func docID(tenantID, nodeID string) string {
	return strings.Join([]string{tenantID, nodeID}, ":")
}
