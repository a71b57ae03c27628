package graphsearch

import (
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/Klingon-tech/slp-validator/pkg/types"
)

// metadataQuery builds the SLPDB aggregation that maps each requested txid
// to its graph stats: total depth and the depth reachable within txMax
// nodes. Mirrors slp_graph_search.py's metadata_url.
func metadataQuery(txids []types.TxID, txMax int) map[string]interface{} {
	return map[string]interface{}{
		"v": 3,
		"q": map[string]interface{}{
			"aggregate": []interface{}{
				map[string]interface{}{"$match": map[string]interface{}{"$or": txidMatches(txids)}},
				map[string]interface{}{"$project": map[string]interface{}{
					"_id":        0,
					"txid":       "$graphTxn.txid",
					"txcount":    "$graphTxn.stats.txcount",
					"totalDepth": "$graphTxn.stats.depth",
					"queryDepth": "$graphTxn.stats.depthMap." + strconv.Itoa(txMax),
				}},
			},
			"limit": len(txids),
		},
	}
}

// graphQuery builds the SLPDB aggregation that walks the DAG below txid up
// to maxDepth and returns every ancestor's raw transaction bytes, grouped
// and ordered by depth. Mirrors slp_graph_search.py's search_url.
//
// validityCache names txids already known-valid; the server excludes them
// from the graph walk via $graphLookup's restrictSearchWithMatch. The
// accelerator's searchOne passes nil, so its queries exclude nothing.
func graphQuery(txids []types.TxID, maxDepth int, validityCache []types.TxID) map[string]interface{} {
	return map[string]interface{}{
		"v": 3,
		"q": map[string]interface{}{
			"db": []interface{}{"g"},
			"aggregate": []interface{}{
				map[string]interface{}{"$match": map[string]interface{}{"$or": txidMatches(txids)}},
				map[string]interface{}{"$graphLookup": map[string]interface{}{
					"from":             "graphs",
					"startWith":        "$graphTxn.txid",
					"connectFromField": "graphTxn.txid",
					"connectToField":   "graphTxn.outputs.spendTxid",
					"as":               "dependsOn",
					"maxDepth":         maxDepth,
					"depthField":       "depth",
					"restrictSearchWithMatch": map[string]interface{}{
						"graphTxn.txid": map[string]interface{}{"$nin": txidStrings(validityCache)},
					},
				}},
				map[string]interface{}{"$project": map[string]interface{}{
					"_id":      0,
					"tokenId":  "$tokenDetails.tokenIdHex",
					"txid":     "$graphTxn.txid",
					"dependsOn": map[string]interface{}{
						"$map": map[string]interface{}{"input": "$dependsOn.graphTxn.txid", "in": "$$this"},
					},
					"depths": map[string]interface{}{
						"$map": map[string]interface{}{"input": "$dependsOn.depth", "in": "$$this"},
					},
				}},
				map[string]interface{}{"$unwind": map[string]interface{}{"path": "$dependsOn", "includeArrayIndex": "depends_index"}},
				map[string]interface{}{"$unwind": map[string]interface{}{"path": "$depths", "includeArrayIndex": "depth_index"}},
				map[string]interface{}{"$project": map[string]interface{}{
					"tokenId":  1,
					"txid":     1,
					"dependsOn": 1,
					"depths":   1,
					"compare":  map[string]interface{}{"$cmp": []interface{}{"$depends_index", "$depth_index"}},
				}},
				map[string]interface{}{"$match": map[string]interface{}{"compare": 0}},
				map[string]interface{}{"$group": map[string]interface{}{
					"_id":     "$dependsOn",
					"txid":    map[string]interface{}{"$first": "$txid"},
					"tokenId": map[string]interface{}{"$first": "$tokenId"},
					"depths":  map[string]interface{}{"$push": "$depths"},
				}},
				map[string]interface{}{"$lookup": map[string]interface{}{
					"from":         "confirmed",
					"localField":   "_id",
					"foreignField": "tx.h",
					"as":           "tx",
				}},
				map[string]interface{}{"$project": map[string]interface{}{
					"txid":      1,
					"tokenId":   1,
					"depths":    1,
					"dependsOn": "$tx.tx.raw",
					"_id":       0,
				}},
				map[string]interface{}{"$unwind": "$dependsOn"},
				map[string]interface{}{"$unwind": "$depths"},
				map[string]interface{}{"$sort": map[string]interface{}{"depths": 1}},
				map[string]interface{}{"$group": map[string]interface{}{
					"_id":       "$txid",
					"dependsOn": map[string]interface{}{"$push": "$dependsOn"},
					"depths":    map[string]interface{}{"$push": "$depths"},
					"tokenId":   map[string]interface{}{"$first": "$tokenId"},
				}},
				map[string]interface{}{"$project": map[string]interface{}{
					"txid":      "$_id",
					"tokenId":   1,
					"dependsOn": 1,
					"depths":    1,
					"_id":       0,
					"txcount":   map[string]interface{}{"$size": "$dependsOn"},
				}},
			},
			"limit": len(txids),
		},
	}
}

func txidMatches(txids []types.TxID) []interface{} {
	out := make([]interface{}, len(txids))
	for i, t := range txids {
		out[i] = map[string]interface{}{"graphTxn.txid": t.String()}
	}
	return out
}

func txidStrings(txids []types.TxID) []string {
	out := make([]string, len(txids))
	for i, t := range txids {
		out[i] = t.String()
	}
	return out
}

// encodeQuery base64-encodes q the way SLPDB's /q/<base64> endpoint expects.
func encodeQuery(q map[string]interface{}) (string, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// metadataResponse mirrors the $project shape of metadataQuery's result set.
type metadataResponse struct {
	G []struct {
		TxID       string `json:"txid"`
		TxCount    int    `json:"txcount"`
		TotalDepth int    `json:"totalDepth"`
		QueryDepth int    `json:"queryDepth"`
	} `json:"g"`
}

// graphResponse mirrors graphQuery's final $project: one entry per queried
// txid, carrying every ancestor's base64-encoded raw bytes and matching
// depth.
type graphResponse struct {
	G []struct {
		TxID      string   `json:"txid"`
		TokenID   string   `json:"tokenId"`
		DependsOn []string `json:"dependsOn"`
		Depths    []int    `json:"depths"`
		TxCount   int      `json:"txcount"`
	} `json:"g"`
}
