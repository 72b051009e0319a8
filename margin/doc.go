// Copyright 2025 go-margin Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package margin implements margin-based classification heads for metric
// learning: additive cosine margin (AM), additive angular margin (Arc) and
// circle loss (Circle), together with the focal-loss reduction shared by AM
// and Arc.
//
// Every head turns a batch of embeddings (B×D) and integer labels into a
// scalar loss in the same three steps:
//
//  1. CosineSimilarity: row-normalize the embeddings and the class
//     prototypes, multiply, clamp to [-1, 1].
//  2. MarginPolicy.Reduce: inject the head's margin and reduce the scores
//     (FocalLoss for AM and Arc, softplus of logsumexp for Circle).
//  3. Pass.Gradients: the analytic backward pass, yielding gradients for
//     the embeddings and for the prototype bank.
//
// The prototype matrix lives in a PrototypeBank owned by the caller and
// shared by the Classifier and whatever optimizer updates it (see
// contrib/optim).
//
// # Example Usage
//
//	cfg := margin.DefaultConfig(margin.KindArc, 128, 1000)
//	head, err := margin.NewClassifier(cfg)
//	if err != nil {
//	    return err
//	}
//	pass, err := head.Forward(embeddings, labels)
//	if err != nil {
//	    return err
//	}
//	grads := pass.Gradients()
//	sgd.Step(head.Bank(), grads.Prototypes)
package margin
